package m3u

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// unknownDuration is the conventional live-stream duration.
const unknownDuration = -1

var (
	// anchoredDurationRe captures a signed integer or decimal immediately
	// following the directive prefix and colon, as in "#EXTINF:-1 ...".
	anchoredDurationRe = regexp.MustCompile(`^#[A-Za-z-]+:\s*(-?\d+(?:\.\d+)?)`)

	// anyDurationRe captures the first signed number anywhere on the line.
	anyDurationRe = regexp.MustCompile(`(-?\d+(?:\.\d+)?)`)
)

// extractDuration resolves the duration of an #EXTINF line with layered
// fallback: anchored after the prefix, then first number anywhere, then -1.
// Decimals truncate toward zero. It never fails; a missing duration is a
// live-stream signal, not a fault.
func extractDuration(line string) int {
	if m := anchoredDurationRe.FindStringSubmatch(line); m != nil {
		return truncateSeconds(m[1])
	}
	if m := anyDurationRe.FindStringSubmatch(line); m != nil {
		return truncateSeconds(m[1])
	}
	return unknownDuration
}

func truncateSeconds(s string) int {
	if !strings.Contains(s, ".") {
		if v, err := strconv.Atoi(s); err == nil {
			return v
		}
		return unknownDuration
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return unknownDuration
	}
	return int(math.Trunc(f))
}
