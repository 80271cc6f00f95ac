package m3u

import "runtime"

// Options are independent parser flags. The zero value is the default
// configuration: basic locator validation, no degraded locators, series
// markers kept, session-data lines treated as plain directives, sequential
// parsing.
type Options struct {
	// StrictLocators restricts locator schemes to a known streaming set and
	// requires a recognized media extension (unless the path already carries
	// an m3u/m3u8 marker). When set together with AllowDegradedLocators
	// unset, any locator that fails normalization makes the whole parse fail
	// after all lines have been processed.
	StrictLocators bool

	// AllowDegradedLocators enables the maximum-resilience fallback: a
	// locator line that cannot be normalized still produces an entry, bound
	// to a tagged degraded locator carrying the original text.
	AllowDegradedLocators bool

	// StripSeriesMarkers removes a recognized "S01 E02" style marker from
	// the display name after season/episode extraction.
	StripSeriesMarkers bool

	// SkipSessionData files #EXT-X-SESSION-DATA lines under their own
	// diagnostic bucket. They never affect pairing either way.
	SkipSessionData bool

	// CaptureHeaders attaches #EXTVLCOPT http-origin/http-referrer/
	// http-user-agent values to the entry they precede.
	CaptureHeaders bool

	// Workers sets the chunk-driver concurrency for ParseParallel.
	// 0 means available hardware parallelism. Parse ignores it.
	Workers int
}

// effectiveWorkers resolves Workers against available parallelism.
func (o Options) effectiveWorkers() int {
	if o.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return o.Workers
}
