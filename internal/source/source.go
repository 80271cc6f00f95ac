// Package source abstracts where playlist text comes from. A Source exposes
// decoded text, a cheap format hint, and a cheap validity check, so callers
// can reject or route documents without a full parse.
package source

import (
	"sync"

	"github.com/voyagen/channelvault/internal/m3u"
)

// Source is the input contract of the parsing engine.
type Source interface {
	// Text returns the decoded, BOM-free document text. ok is false when
	// the source is unreadable.
	Text() (text string, ok bool)
	// Hint returns a content-sniffing format guess.
	Hint() m3u.FormatHint
	// IsValid reports whether the document starts with a playlist header,
	// without parsing it.
	IsValid() bool
}

// TextSource serves an already-decoded document from memory.
type TextSource struct {
	text string
}

// NewText wraps decoded text as a Source.
func NewText(text string) *TextSource {
	return &TextSource{text: text}
}

// NewBytes decodes raw bytes (BOM handling, UTF-16 transcoding) into a
// Source. ok is false when decoding fails.
func NewBytes(data []byte) (*TextSource, bool) {
	text, err := m3u.Decode(data)
	if err != nil {
		return nil, false
	}
	return NewText(text), true
}

func (s *TextSource) Text() (string, bool)  { return s.text, true }
func (s *TextSource) Hint() m3u.FormatHint  { return m3u.SniffFormat(s.text) }
func (s *TextSource) IsValid() bool         { return m3u.IsValidHeader(s.text) }

// Cached decorates a Source, memoizing the text and validity flag after the
// first read. The cache has no expiry; callers invalidate it explicitly.
// Repeated reads against the same underlying document are guaranteed to see
// identical values.
type Cached struct {
	inner Source

	mu    sync.Mutex
	done  bool
	text  string
	ok    bool
	hint  m3u.FormatHint
	valid bool
}

// NewCached wraps inner with memoization.
func NewCached(inner Source) *Cached {
	return &Cached{inner: inner}
}

func (c *Cached) load() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done {
		return
	}
	c.text, c.ok = c.inner.Text()
	c.hint = c.inner.Hint()
	c.valid = c.inner.IsValid()
	c.done = true
}

func (c *Cached) Text() (string, bool) {
	c.load()
	return c.text, c.ok
}

func (c *Cached) Hint() m3u.FormatHint {
	c.load()
	return c.hint
}

func (c *Cached) IsValid() bool {
	c.load()
	return c.valid
}

// Invalidate drops the memoized state so the next read hits the underlying
// source again.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.done = false
	c.mu.Unlock()
}
