package m3u

import (
	"strings"

	"golang.org/x/sync/errgroup"
)

// chunk is a half-open range [start, end) of entry-stream line indexes.
type chunk struct {
	start, end int
}

// chunkResult carries one worker's output until ordered concatenation.
type chunkResult struct {
	entries []Entry
	diags   []Diagnostic
	locErr  *UnusableLocatorError
}

// safeBoundaries runs the preliminary fast scan and reports, per line index,
// whether a chunk may start there. A start index is safe immediately after a
// line that completed a pairing, or at an InfoLine (where the sequential
// machine's state is equivalent to a fresh one, the discarded-pending
// diagnostic being emitted identically by the previous chunk's drain).
func safeBoundaries(lines []string, opts Options) []bool {
	safe := make([]bool, len(lines)+1)
	pending := false
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		switch classify(line, false) {
		case classInfo:
			safe[i] = true
			pending = true
		case classLocator:
			if !pending {
				continue
			}
			if _, ok := normalizeLocator(line, opts.StrictLocators); ok || opts.AllowDegradedLocators {
				pending = false
				safe[i+1] = true
			}
		}
	}
	return safe
}

// chunkBounds partitions the line range into at most workers chunks whose
// split points all fall on safe boundaries, so no entry spans two chunks.
func chunkBounds(lines []string, workers int, opts Options) []chunk {
	n := len(lines)
	safe := safeBoundaries(lines, opts)
	target := (n + workers - 1) / workers

	var bounds []chunk
	start := 0
	for start < n && len(bounds) < workers-1 {
		ideal := start + target
		if ideal >= n {
			break
		}
		end := -1
		for j := ideal; j < n; j++ {
			if safe[j] {
				end = j
				break
			}
		}
		if end < 0 {
			break
		}
		bounds = append(bounds, chunk{start: start, end: end})
		start = end
	}
	bounds = append(bounds, chunk{start: start, end: n})
	return bounds
}

// ParseParallel parses a decoded playlist document with the chunked driver:
// the entry stream is split at safe boundaries, each chunk runs through an
// independent pairing machine, and results are concatenated in chunk order.
// Output is identical to Parse for any worker count; errors surface only
// after every chunk has been processed.
func ParseParallel(text string, opts Options) (*Playlist, []Diagnostic, error) {
	header, lines, offset, ok := splitDocument(text)
	if !ok {
		return nil, nil, ErrInvalidSource
	}
	attrs := parseHeader(header)

	workers := opts.effectiveWorkers()
	if workers <= 1 || len(lines) == 0 {
		entries, diags, locErr := runMachine(lines, offset, opts)
		return assemble(attrs, entries, diags, locErr, opts)
	}

	bounds := chunkBounds(lines, workers, opts)
	results := make([]chunkResult, len(bounds))

	var g errgroup.Group
	for idx, b := range bounds {
		g.Go(func() error {
			entries, diags, locErr := runMachine(lines[b.start:b.end], offset+b.start, opts)
			results[idx] = chunkResult{entries: entries, diags: diags, locErr: locErr}
			return nil
		})
	}
	// Workers own disjoint chunks and never fail individually; Wait is the
	// fan-in point.
	_ = g.Wait()

	var (
		entries []Entry
		diags   []Diagnostic
		locErr  *UnusableLocatorError
	)
	for _, r := range results {
		entries = append(entries, r.entries...)
		diags = append(diags, r.diags...)
		if locErr == nil {
			locErr = r.locErr
		}
	}
	return assemble(attrs, entries, diags, locErr, opts)
}
