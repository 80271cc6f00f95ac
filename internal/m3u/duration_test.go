package m3u

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractDuration(t *testing.T) {
	tests := []struct {
		name string
		line string
		want int
	}{
		{"live marker", `#EXTINF:-1 tvg-id="x",X`, -1},
		{"positive seconds", `#EXTINF:120,Song`, 120},
		{"decimal truncates toward zero", `#EXTINF:10.9,Song`, 10},
		{"negative decimal truncates toward zero", `#EXTINF:-0.5,Live`, 0},
		{"typo prefix still anchored", `#EXTNIF:42,X`, 42},
		{"number elsewhere on the line", `#EXTINF: oops duration 300 here,X`, 300},
		{"no numeric token at all", `#EXTINF: tvg-id="x",X`, -1},
		{"empty after colon", `#EXTINF:`, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDuration(tt.line))
		})
	}
}
