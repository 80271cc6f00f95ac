// Package fetcher acquires playlist documents over HTTP and runs them
// through the parsing engine.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/voyagen/channelvault/internal/m3u"
	"github.com/voyagen/channelvault/internal/source"
)

// Result is a fetched-and-parsed playlist together with the recoverable
// conditions encountered while parsing it.
type Result struct {
	Playlist    *m3u.Playlist
	Diagnostics []m3u.Diagnostic
	Format      m3u.FormatHint
}

// Fetch downloads url, decodes the body, and parses it with opts. userAgent
// is optional. The source validity check runs before the full parse so
// non-playlist bodies fail fast with ErrInvalidSource.
func Fetch(ctx context.Context, url, userAgent string, timeout time.Duration, opts m3u.Options) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("Do: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ReadAll: %w", err)
	}
	return ParseSource(body, opts)
}

// ParseSource decodes raw playlist bytes and parses them with opts.
func ParseSource(body []byte, opts m3u.Options) (*Result, error) {
	src, ok := source.NewBytes(body)
	if !ok {
		return nil, m3u.ErrInvalidSource
	}
	if !src.IsValid() {
		return nil, m3u.ErrInvalidSource
	}
	text, ok := src.Text()
	if !ok {
		return nil, m3u.ErrInvalidSource
	}

	var (
		pl    *m3u.Playlist
		diags []m3u.Diagnostic
		err   error
	)
	if opts.Workers > 1 {
		pl, diags, err = m3u.ParseParallel(text, opts)
	} else {
		pl, diags, err = m3u.Parse(text, opts)
	}
	if err != nil {
		return nil, err
	}
	return &Result{Playlist: pl, Diagnostics: diags, Format: src.Hint()}, nil
}
