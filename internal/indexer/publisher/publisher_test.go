package publisher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

type fakeArchive struct {
	failures int
	saved    []*index.Index
}

func (f *fakeArchive) Save(_ context.Context, idx *index.Index) (*store.Build, error) {
	if f.failures > 0 {
		f.failures--
		return nil, errors.New("connection reset")
	}
	f.saved = append(f.saved, idx)
	return &store.Build{ID: int64(len(f.saved))}, nil
}

type fakeNotifier struct {
	err  error
	msgs []kafka.Message
}

func (f *fakeNotifier) Publish(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

var fastPolicy = resilience.Policy{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

func fixture(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.LoadFile("../index/testdata/searchindex.js")
	require.NoError(t, err)
	return idx
}

func TestPublishArchivesThenAnnounces(t *testing.T) {
	idx := fixture(t)
	archive := &fakeArchive{failures: 1}
	notifier := &fakeNotifier{}

	event, err := New(archive, notifier).WithPolicy(fastPolicy).Publish(context.Background(), idx, "out/searchindex.js")
	require.NoError(t, err)

	fp, err := index.Fingerprint(idx)
	require.NoError(t, err)
	assert.Equal(t, fp, event.Fingerprint)
	assert.Equal(t, 12, event.Docs)
	assert.Equal(t, "out/searchindex.js", event.Path)

	assert.Len(t, archive.saved, 1, "transient failure is retried")
	require.Len(t, notifier.msgs, 1)
	assert.Equal(t, fp, notifier.msgs[0].Key)
	assert.Equal(t, event, notifier.msgs[0].Value.(indexer.BuildEvent))
}

func TestPublishSkipsAnnounceWhenArchiveFails(t *testing.T) {
	archive := &fakeArchive{failures: 10}
	notifier := &fakeNotifier{}

	_, err := New(archive, notifier).WithPolicy(fastPolicy).Publish(context.Background(), fixture(t), "")
	assert.ErrorContains(t, err, "archiving build")
	assert.Empty(t, notifier.msgs)
}

func TestPublishWithoutBackends(t *testing.T) {
	event, err := New(nil, nil).Publish(context.Background(), fixture(t), "")
	require.NoError(t, err)
	assert.NotEmpty(t, event.Fingerprint)
}

func TestPublishAnnounceFailure(t *testing.T) {
	notifier := &fakeNotifier{err: errors.New("broker down")}
	_, err := New(nil, notifier).WithPolicy(fastPolicy).Publish(context.Background(), fixture(t), "")
	assert.ErrorContains(t, err, "announcing build")
}
