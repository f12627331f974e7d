// Command loadtest drives the search API with queries taken from an index
// file's section titles and reports throughput, latency and cache hit rate.
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/handler"
)

type options struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

func main() {
	var opts options
	flag.StringVar(&opts.BaseURL, "url", "http://localhost:8080", "base URL of the search service")
	flag.IntVarP(&opts.Concurrency, "concurrency", "c", 10, "number of concurrent workers")
	flag.DurationVarP(&opts.Duration, "duration", "d", 30*time.Second, "test duration")
	flag.IntVar(&opts.Limit, "limit", 10, "limit sent with every query")
	flag.StringArrayVarP(&opts.Queries, "query", "q", nil, "query to send (repeatable)")
	indexPath := flag.StringP("index", "i", "", "take queries from the section titles of this searchindex.js")
	flag.Parse()

	if *indexPath != "" {
		idx, err := index.LoadFile(*indexPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "loading queries: %v\n", err)
			os.Exit(1)
		}
		opts.Queries = append(opts.Queries, queriesFrom(idx)...)
	}
	if len(opts.Queries) == 0 {
		fmt.Fprintln(os.Stderr, "no queries: pass --query or --index")
		os.Exit(2)
	}

	fmt.Println("=== docindex load test ===")
	fmt.Printf("Target:      %s\n", opts.BaseURL)
	fmt.Printf("Concurrency: %d\n", opts.Concurrency)
	fmt.Printf("Duration:    %s\n", opts.Duration)
	fmt.Printf("Queries:     %d unique\n\n", len(opts.Queries))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stats := run(ctx, http.DefaultTransport, opts)
	stats.Report(os.Stdout, opts.Duration)
	if stats.Total() == 0 {
		fmt.Println("\nWARNING: no requests completed. Is the service running?")
		os.Exit(1)
	}
}

// queriesFrom returns every section title, which exercises both the term
// tables and the section-title matcher.
func queriesFrom(idx *index.Index) []string {
	queries := make([]string, 0, len(idx.AllTitles))
	for title := range idx.AllTitles {
		queries = append(queries, title)
	}
	return queries
}

func run(ctx context.Context, transport http.RoundTripper, opts options) *Stats {
	stats := NewStats()
	client := &http.Client{Timeout: 10 * time.Second, Transport: transport}
	if t, ok := transport.(*http.Transport); ok {
		t = t.Clone()
		t.MaxIdleConnsPerHost = opts.Concurrency * 2
		client.Transport = t
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Duration)
	defer cancel()

	var g errgroup.Group
	for worker := range opts.Concurrency {
		g.Go(func() error {
			for i := worker; ctx.Err() == nil; i++ {
				query := opts.Queries[i%len(opts.Queries)]
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d", opts.BaseURL, url.QueryEscape(query), opts.Limit)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return err
				}

				start := time.Now()
				resp, err := client.Do(req)
				elapsed := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.Record(elapsed, 0, false, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.Record(elapsed, resp.StatusCode, resp.Header.Get(handler.CacheHeader) == "HIT", nil)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "load test aborted: %v\n", err)
	}
	return stats
}
