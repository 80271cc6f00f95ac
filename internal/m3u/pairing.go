package m3u

import "strings"

// pendingEntry is the single slot of metadata awaiting its locator.
type pendingEntry struct {
	line     int
	attrs    EntryAttributes
	name     string
	duration int
	headers  *HTTPHeaders
}

// machine is the sequential pairing core. It consumes classified lines in
// order, holds at most one pending metadata record, and emits an entry when
// the first valid locator follows it. All extraction failures recover
// locally into diagnostics; the machine itself never stops early.
type machine struct {
	opts    Options
	entries []Entry
	diags   []Diagnostic
	pending *pendingEntry
	locErr  *UnusableLocatorError // first normalization failure, kept for strict-mode reporting
}

// feed processes one raw line. lineNo is the 1-based document line number.
func (m *machine) feed(lineNo int, raw string) {
	line := strings.TrimSpace(raw)
	switch classify(line, false) {
	case classBlank, classHeader, classDirective:
		// Directive lines never touch pairing state.

	case classSession:
		if m.opts.SkipSessionData {
			m.diags = append(m.diags, Diagnostic{Line: lineNo, Kind: DiagSessionData, Detail: line})
		}

	case classPlayerOption:
		if m.opts.CaptureHeaders && m.pending != nil {
			if m.pending.headers == nil {
				m.pending.headers = &HTTPHeaders{}
			}
			extractVLCOpt(line, m.pending.headers)
		}

	case classInfo:
		// An InfoLine always starts a new candidate entry; unconsumed
		// metadata is discarded with a diagnostic, never an error.
		if m.pending != nil {
			m.diags = append(m.diags, Diagnostic{
				Line: m.pending.line, Kind: DiagDiscardedMetadata, Detail: m.pending.name,
			})
		}
		attrs, name, nameMissing := extractAttributes(line, m.opts.StripSeriesMarkers)
		if nameMissing {
			m.diags = append(m.diags, Diagnostic{Line: lineNo, Kind: DiagMissingDisplayName, Detail: line})
		}
		m.pending = &pendingEntry{
			line:     lineNo,
			attrs:    attrs,
			name:     name,
			duration: extractDuration(line),
		}

	case classLocator:
		if m.pending == nil {
			// No metadata to complete; extra locator lines after a completed
			// entry are ignored (first-locator-wins).
			return
		}
		uri, ok := normalizeLocator(line, m.opts.StrictLocators)
		if ok {
			m.emit(ResolvedLocator(uri))
			return
		}
		if m.opts.AllowDegradedLocators {
			m.diags = append(m.diags, Diagnostic{Line: lineNo, Kind: DiagDegradedLocator, Detail: line})
			m.emit(DegradedLocator(line))
			return
		}
		// Not a usable locator: record and keep the pending metadata so a
		// later valid locator can still complete it.
		m.diags = append(m.diags, Diagnostic{Line: lineNo, Kind: DiagUnusableLocator, Detail: line})
		if m.locErr == nil {
			m.locErr = &UnusableLocatorError{Line: lineNo, Text: line}
		}
	}
}

// emit completes the pending metadata with loc and clears the slot.
func (m *machine) emit(loc Locator) {
	p := m.pending
	m.entries = append(m.entries, Entry{
		Duration: p.duration,
		Attrs:    p.attrs,
		Kind:     kindFromLocator(loc),
		Name:     p.name,
		Locator:  loc,
		Headers:  p.headers,
	})
	m.pending = nil
}

// finish drains the machine at end of input. Dangling metadata is dropped
// with a diagnostic so sequential and chunked runs report identically.
func (m *machine) finish() {
	if m.pending != nil {
		m.diags = append(m.diags, Diagnostic{
			Line: m.pending.line, Kind: DiagDiscardedMetadata, Detail: m.pending.name,
		})
		m.pending = nil
	}
}

// runMachine executes the sequential core over an entry stream. offset is
// the document line number of lines[0].
func runMachine(lines []string, offset int, opts Options) ([]Entry, []Diagnostic, *UnusableLocatorError) {
	m := &machine{opts: opts}
	for i, raw := range lines {
		m.feed(offset+i, raw)
	}
	m.finish()
	return m.entries, m.diags, m.locErr
}

// Parse parses a decoded playlist document sequentially.
//
// A successful parse returns a non-empty Playlist plus a possibly non-empty
// diagnostics list describing skipped or degraded entries. Fatal failures
// (ErrInvalidSource, ErrEmptyResult, or a strict-mode *UnusableLocatorError
// reported only after every line was processed) return no Playlist.
func Parse(text string, opts Options) (*Playlist, []Diagnostic, error) {
	header, lines, offset, ok := splitDocument(text)
	if !ok {
		return nil, nil, ErrInvalidSource
	}
	attrs := parseHeader(header)
	entries, diags, locErr := runMachine(lines, offset, opts)
	return assemble(attrs, entries, diags, locErr, opts)
}

// ParseBytes decodes raw bytes (BOM handling, UTF-16 transcoding) and parses
// the result.
func ParseBytes(data []byte, opts Options) (*Playlist, []Diagnostic, error) {
	text, err := Decode(data)
	if err != nil {
		return nil, nil, ErrInvalidSource
	}
	return Parse(text, opts)
}

// assemble applies the terminal-condition policy shared by the sequential
// and parallel paths.
func assemble(attrs PlaylistAttributes, entries []Entry, diags []Diagnostic, locErr *UnusableLocatorError, opts Options) (*Playlist, []Diagnostic, error) {
	if opts.StrictLocators && !opts.AllowDegradedLocators && locErr != nil {
		return nil, diags, locErr
	}
	if len(entries) == 0 {
		return nil, diags, ErrEmptyResult
	}
	return &Playlist{Attributes: attrs, Entries: entries}, diags, nil
}
