package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/store"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/docindex/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/postgres"
)

func runValidate(_ context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("validate", "warn")
	path := fs.indexPath()
	if err := fs.parse(args); err != nil {
		return err
	}

	idx, err := index.LoadFile(*path)
	if err != nil {
		return err
	}
	if err := idx.Validate(); err != nil {
		var verr *index.ValidationError
		if errors.As(err, &verr) {
			for _, problem := range verr.Problems {
				fmt.Fprintf(stdout, "  %s\n", problem)
			}
		}
		return fmt.Errorf("%s is invalid: %w", *path, err)
	}
	fingerprint, err := index.Fingerprint(idx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s: ok, %d documents, fingerprint %s\n", *path, idx.NumDocs(), fingerprint)
	return nil
}

func runQuery(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("query", "warn")
	path := fs.indexPath()
	limit := fs.IntP("limit", "n", 10, "maximum results")
	exact := fs.Bool("exact", false, "disable partial (substring) matching")
	asJSON := fs.Bool("json", false, "print the full result as JSON")
	if err := fs.parse(args); err != nil {
		return err
	}
	raw := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(raw) == "" {
		return errors.New("query text is required")
	}

	idx, err := index.LoadFile(*path)
	if err != nil {
		return err
	}
	result, err := executor.New(executor.Options{PartialMatching: !*exact}).Execute(ctx, idx, parser.Parse(raw), *limit)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Fprintf(stdout, "%d hits (%s)\n", result.TotalHits, result.Mode)
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SCORE\tKIND\tLOCATION\tTITLE")
	for _, r := range result.Results {
		location := r.Docname
		if r.Anchor != "" {
			location += "#" + r.Anchor
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.Score, r.Kind, location, r.Title)
	}
	return tw.Flush()
}

func runLookup(_ context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("lookup", "warn")
	path := fs.indexPath()
	raw := fs.Bool("raw", false, "look the key up verbatim instead of stemming it")
	if err := fs.parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("exactly one term is required")
	}
	word := fs.Arg(0)
	key := word
	if !*raw {
		term, ok := tokenizer.IndexTerm(word)
		if !ok {
			fmt.Fprintf(stdout, "%q is never indexed\n", word)
			return nil
		}
		key = term
	}

	idx, err := index.LoadFile(*path)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "key %q\n", key)
	printPostings(stdout, "terms", idx, idx.Lookup(key))
	printPostings(stdout, "titleterms", idx, idx.LookupTitle(key))
	return nil
}

func printPostings(w io.Writer, table string, idx *index.Index, postings index.PostingList) {
	fmt.Fprintf(w, "%s: %d documents\n", table, len(postings))
	for _, id := range postings {
		if doc, ok := idx.Document(id); ok {
			fmt.Fprintf(w, "  %3d  %-32s %s\n", id, doc.Docname, doc.Title)
		}
	}
}

func runStats(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("stats", "warn")
	path := fs.indexPath()
	builds := fs.Int("builds", 0, "also list this many archived builds from postgres")
	configPath := fs.StringP("config", "c", os.Getenv("DI_CONFIG"), "path to config file, used with --builds")
	if err := fs.parse(args); err != nil {
		return err
	}

	idx, err := index.LoadFile(*path)
	if err != nil {
		return err
	}
	fingerprint, err := index.Fingerprint(idx)
	if err != nil {
		return err
	}
	stats := idx.Stats()
	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "file\t%s\n", *path)
	fmt.Fprintf(tw, "fingerprint\t%s\n", fingerprint)
	fmt.Fprintf(tw, "documents\t%d\n", stats.Documents)
	fmt.Fprintf(tw, "terms\t%d\n", stats.Terms)
	fmt.Fprintf(tw, "title terms\t%d\n", stats.TitleTerms)
	fmt.Fprintf(tw, "section titles\t%d\n", stats.Titles)
	fmt.Fprintf(tw, "postings\t%d\n", stats.Postings)
	envKeys := make([]string, 0, len(idx.EnvVersion))
	for k := range idx.EnvVersion {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		fmt.Fprintf(tw, "env %s\t%d\n", k, idx.EnvVersion[k])
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if *builds <= 0 {
		return nil
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	s, err := store.New(ctx, db)
	if err != nil {
		return err
	}
	list, err := s.List(ctx, *builds)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "\narchived builds:\n")
	tw = tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tBUILT\tDOCS\tTERMS\tFINGERPRINT")
	for _, b := range list {
		marker := ""
		if b.Fingerprint == fingerprint {
			marker = " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s%s\n", b.ID, b.BuiltAt.Format("2006-01-02 15:04:05"), b.Documents, b.Terms, b.Fingerprint, marker)
	}
	return tw.Flush()
}
