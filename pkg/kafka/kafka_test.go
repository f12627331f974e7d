package kafka

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
)

type buildNote struct {
	Fingerprint string `json:"fingerprint"`
	Docs        int    `json:"docs"`
}

func TestDecodeJSON(t *testing.T) {
	note, err := DecodeJSON[buildNote]([]byte(`{"fingerprint":"abc","docs":12}`))
	require.NoError(t, err)
	assert.Equal(t, buildNote{Fingerprint: "abc", Docs: 12}, note)

	_, err = DecodeJSON[buildNote]([]byte(`{`))
	assert.ErrorContains(t, err, "decoding kafka message")
}

func TestPublishNothingIsNoop(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "index.built")
	defer p.Close()
	assert.Equal(t, "index.built", p.Topic())
	assert.NoError(t, p.Publish(context.Background()))
}

func TestPublishRejectsUnencodableValue(t *testing.T) {
	p := NewProducer(config.KafkaConfig{Brokers: []string{"127.0.0.1:1"}}, "index.built")
	defer p.Close()
	err := p.Publish(context.Background(), Message{Key: "k", Value: make(chan int)})
	assert.ErrorContains(t, err, "encoding message")
}

func TestInstanceGroup(t *testing.T) {
	orig := hostname
	t.Cleanup(func() { hostname = orig })

	hostname = func() (string, error) { return "searcher-0", nil }
	assert.Equal(t, "docindex-searcher-searcher-0", InstanceGroup("docindex-searcher"))

	hostname = func() (string, error) { return "", errors.New("no hostname") }
	a := InstanceGroup("docindex-searcher")
	b := InstanceGroup("docindex-searcher")
	assert.Regexp(t, `^docindex-searcher-[0-9a-f]{8}$`, a)
	assert.NotEqual(t, a, b)
}
