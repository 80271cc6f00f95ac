package m3u

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name  string
		line  string
		first bool
		want  lineClass
	}{
		{"header first line", "#EXTM3U", true, classHeader},
		{"header lowercase", "#extm3u url-tvg=\"http://e\"", true, classHeader},
		{"header not first", "#EXTM3U", false, classDirective},
		{"extinf", `#EXTINF:-1 tvg-id="a",A`, false, classInfo},
		{"extinf typo", `#EXTNIF:-1,A`, false, classInfo},
		{"group tag", "#EXTGRP:News", false, classDirective},
		{"vlc option", "#EXTVLCOPT:http-user-agent=VLC", false, classPlayerOption},
		{"hls family", "#EXT-X-VERSION:3", false, classDirective},
		{"byte range", "#EXT-X-BYTERANGE:500@0", false, classDirective},
		{"encoding tag", "#EXTENC:UTF-8", false, classDirective},
		{"playlist tag", "#PLAYLIST:Mine", false, classDirective},
		{"session data", `#EXT-X-SESSION-DATA:DATA-ID="com.x",VALUE="1"`, false, classSession},
		{"unknown comment", "# just a note", false, classDirective},
		{"unknown directive", "#EXTFOO:1", false, classDirective},
		{"url", "https://example.com/a.m3u8", false, classLocator},
		{"bare path", "stream/1.ts", false, classLocator},
		{"blank", "", false, classBlank},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classify(tt.line, tt.first))
		})
	}
}

func TestClassifySessionBeforeHLSFamily(t *testing.T) {
	// #EXT-X-SESSION-DATA must not be swallowed by the #EXT-X- family rule.
	assert.Equal(t, classSession, classify("#EXT-X-SESSION-DATA:DATA-ID=\"x\"", false))
	assert.Equal(t, classDirective, classify("#EXT-X-SESSION-KEY:METHOD=AES-128", false))
}
