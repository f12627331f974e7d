package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/publisher"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/resilience"
)

func runBuild(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("build", "info")
	configPath := fs.StringP("config", "c", os.Getenv("DI_CONFIG"), "path to config file")
	root := fs.StringP("source", "s", "", "documentation source root (overrides source.root)")
	out := fs.StringP("out", "o", "", "output file (defaults to index.path)")
	workers := fs.IntP("workers", "w", 0, "tokenizer workers (overrides source.workers)")
	publish := fs.Bool("publish", false, "archive the build in postgres and announce it on kafka, whichever are enabled")
	publishTimeout := fs.Duration("publish-timeout", 30*time.Second, "upper bound for publishing")
	metricsFile := fs.String("metrics-file", "", "write build metrics in Prometheus text format to this file")
	if err := fs.parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *root != "" {
		cfg.Source.Root = *root
	}
	if *workers > 0 {
		cfg.Source.Workers = *workers
	}
	path := cfg.Index.Path
	if *out != "" {
		path = *out
	}

	m := metrics.New(prometheus.NewRegistry())
	defer func() {
		if *metricsFile == "" {
			return
		}
		if err := m.WriteTextfile(*metricsFile); err != nil {
			slog.Error("writing metrics file failed", "path", *metricsFile, "error", err)
		}
	}()

	start := time.Now()
	idx, err := indexer.NewBuilder(cfg.Source).BuildDir(ctx)
	m.BuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		m.BuildsTotal.WithLabelValues("failure").Inc()
		return err
	}
	if err := index.WriteFile(path, idx); err != nil {
		m.BuildsTotal.WithLabelValues("failure").Inc()
		return err
	}
	m.BuildsTotal.WithLabelValues("success").Inc()

	fingerprint, err := index.Fingerprint(idx)
	if err != nil {
		return err
	}
	stats := idx.Stats()
	fmt.Fprintf(stdout, "wrote %s: %d documents, %d terms, %d title terms\nfingerprint %s\n",
		path, stats.Documents, stats.Terms, stats.TitleTerms, fingerprint)

	if !*publish {
		return nil
	}
	return publishBuild(ctx, cfg, idx, path, *publishTimeout, stdout)
}

func publishBuild(ctx context.Context, cfg *config.Config, idx *index.Index, path string, timeout time.Duration, stdout io.Writer) error {
	var archive publisher.Archiver
	if cfg.Postgres.Enabled {
		db, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		defer db.Close()
		builds, err := store.New(ctx, db)
		if err != nil {
			return err
		}
		archive = builds
	}
	var notifier publisher.Notifier
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.IndexBuilt)
		defer producer.Close()
		notifier = producer
	}
	if archive == nil && notifier == nil {
		return errors.New("--publish needs postgres.enabled or kafka.enabled")
	}

	pub := publisher.New(archive, notifier)
	return resilience.WithTimeout(ctx, "publish build", timeout, func(ctx context.Context) error {
		event, err := pub.Publish(ctx, idx, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "published build %s\n", event.Fingerprint)
		return nil
	})
}
