package m3u

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSource reports missing or headerless input. No entries are
	// produced.
	ErrInvalidSource = errors.New("m3u: source is missing or has no #EXTM3U header")

	// ErrEmptyResult reports a document with a valid header from which no
	// entry survived pairing.
	ErrEmptyResult = errors.New("m3u: no entries could be parsed")
)

// UnusableLocatorError reports a locator line that could not be normalized
// under the current strictness. It is recoverable (a diagnostic) unless the
// configuration forbids degraded locators in strict mode, in which case the
// first such failure becomes the terminal error once every line has been
// processed.
type UnusableLocatorError struct {
	Line int    // 1-based line number within the entry stream
	Text string // offending line, post-trim
}

func (e *UnusableLocatorError) Error() string {
	return fmt.Sprintf("m3u: unusable locator at line %d: %q", e.Line, e.Text)
}

// DiagnosticKind identifies a recoverable condition recorded during a parse.
type DiagnosticKind int

const (
	// DiagUnusableLocator marks a locator candidate that failed
	// normalization and was skipped.
	DiagUnusableLocator DiagnosticKind = iota
	// DiagDiscardedMetadata marks an #EXTINF line whose metadata was never
	// completed by a locator.
	DiagDiscardedMetadata
	// DiagMissingDisplayName marks an #EXTINF line with no title comma; the
	// display name fell back to "Unknown".
	DiagMissingDisplayName
	// DiagDegradedLocator marks an entry emitted with a degraded locator.
	DiagDegradedLocator
	// DiagSessionData marks a skipped #EXT-X-SESSION-DATA line (only when
	// session skipping is enabled).
	DiagSessionData
)

// String returns a stable label for the kind.
func (k DiagnosticKind) String() string {
	switch k {
	case DiagUnusableLocator:
		return "unusable_locator"
	case DiagDiscardedMetadata:
		return "discarded_metadata"
	case DiagMissingDisplayName:
		return "missing_display_name"
	case DiagDegradedLocator:
		return "degraded_locator"
	case DiagSessionData:
		return "session_data_skipped"
	default:
		return "unknown"
	}
}

// Diagnostic records one recoverable condition. A successful parse returns
// all diagnostics collected over the whole document.
type Diagnostic struct {
	Line   int            `json:"line"`
	Kind   DiagnosticKind `json:"kind"`
	Detail string         `json:"detail,omitempty"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s: %s", d.Line, d.Kind, d.Detail)
}
