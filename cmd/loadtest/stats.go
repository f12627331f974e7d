package main

import (
	"fmt"
	"io"
	"math"
	"slices"
	"sync"
	"time"
)

type Stats struct {
	mu          sync.Mutex
	total       int64
	success     int64
	errors      int64
	cacheHits   int64
	latencies   []time.Duration
	statusCodes map[int]int64
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]int64),
	}
}

func (s *Stats) Record(d time.Duration, status int, cacheHit bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total++
	if err != nil {
		s.errors++
		return
	}
	if status >= 200 && status < 300 {
		s.success++
	} else {
		s.errors++
	}
	if cacheHit {
		s.cacheHits++
	}
	s.latencies = append(s.latencies, d)
	s.statusCodes[status]++
}

func (s *Stats) Total() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Stats) Report(w io.Writer, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", s.total)
	fmt.Fprintf(w, "Successful:      %d\n", s.success)
	fmt.Fprintf(w, "Errors:          %d\n", s.errors)
	if s.total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(s.errors)/float64(s.total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(s.total)/duration.Seconds())
	}
	if s.success > 0 {
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(s.cacheHits)/float64(s.success)*100)
	}

	if len(s.latencies) > 0 {
		sorted := slices.Clone(s.latencies)
		slices.Sort(sorted)
		var sum time.Duration
		for _, l := range sorted {
			sum += l
		}
		avg := sum / time.Duration(len(sorted))

		fmt.Fprintln(w, "\n=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", sorted[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		for _, p := range []float64{50, 90, 95, 99} {
			fmt.Fprintf(w, "P%-5.0f %s\n", p, percentile(sorted, p))
		}
		fmt.Fprintf(w, "Max:    %s\n", sorted[len(sorted)-1])
	}

	fmt.Fprintln(w, "\n=== Status Codes ===")
	codes := make([]int, 0, len(s.statusCodes))
	for code := range s.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, s.statusCodes[code])
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
