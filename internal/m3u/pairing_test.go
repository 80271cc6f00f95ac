package m3u

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEndToEnd(t *testing.T) {
	doc := "#EXTM3U\n#EXTINF:-1 tvg-id=\"bbc\" group-title=\"UK\",BBC One\nhttps://ex.com/bbc.m3u8\n"
	pl, diags, err := Parse(doc, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, pl.Entries, 1)

	e := pl.Entries[0]
	assert.Equal(t, "BBC One", e.Name)
	assert.Equal(t, "bbc", e.Attrs.ID)
	assert.Equal(t, "UK", e.Attrs.GroupTitle)
	assert.Equal(t, "https://ex.com/bbc.m3u8", e.Locator.String())
	assert.Equal(t, -1, e.Duration)
	assert.Equal(t, KindUnknown, e.Kind)
}

func TestParseDirectivesNeverBreakPairing(t *testing.T) {
	// Interleaved directives between metadata and its locator must not
	// reset the pending entry or misattribute URLs.
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1 tvg-id="one",One`,
		"#EXTGRP:News",
		"#EXT-X-SESSION-DATA:DATA-ID=\"com.x\",VALUE=\"1\"",
		"#EXTVLCOPT:http-user-agent=VLC",
		"https://x/one.ts",
		"# random comment",
		`#EXTINF:-1 tvg-id="two",Two`,
		"#EXT-X-VERSION:3",
		"https://x/two.ts",
	}, "\n")
	pl, diags, err := Parse(doc, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Len(t, pl.Entries, 2)
	assert.Equal(t, "https://x/one.ts", pl.Entries[0].Locator.String())
	assert.Equal(t, "https://x/two.ts", pl.Entries[1].Locator.String())
}

func TestParseFirstLocatorWins(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,One`,
		"https://x/first.ts",
		"https://x/second.ts",
		"https://x/third.ts",
		`#EXTINF:-1,Two`,
		"https://x/fourth.ts",
	}, "\n")
	pl, _, err := Parse(doc, Options{})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 2)
	assert.Equal(t, "https://x/first.ts", pl.Entries[0].Locator.String())
	assert.Equal(t, "https://x/fourth.ts", pl.Entries[1].Locator.String())
}

func TestParseLaterLocatorCompletesAfterFailure(t *testing.T) {
	// An unusable locator line leaves the pending metadata intact so the
	// next valid locator still completes it.
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,One`,
		"/root-relative-is-invalid.ts",
		"https://x/good.ts",
	}, "\n")
	pl, diags, err := Parse(doc, Options{})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 1)
	assert.Equal(t, "https://x/good.ts", pl.Entries[0].Locator.String())
	require.Len(t, diags, 1)
	assert.Equal(t, DiagUnusableLocator, diags[0].Kind)
	assert.Equal(t, 3, diags[0].Line)
}

func TestParseMetadataWithoutLocatorProducesNoEntry(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,Dangling`,
		`#EXTINF:-1,Kept`,
		"https://x/kept.ts",
		`#EXTINF:-1,Trailing`,
	}, "\n")
	pl, diags, err := Parse(doc, Options{})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 1)
	assert.Equal(t, "Kept", pl.Entries[0].Name)

	require.Len(t, diags, 2)
	assert.Equal(t, DiagDiscardedMetadata, diags[0].Kind)
	assert.Equal(t, "Dangling", diags[0].Detail)
	assert.Equal(t, DiagDiscardedMetadata, diags[1].Kind)
	assert.Equal(t, "Trailing", diags[1].Detail)
}

func TestParseKindFromLocatorPath(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,M`, "https://x/movie/123.mp4",
		`#EXTINF:-1,S`, "https://x/series/456.mkv",
		`#EXTINF:-1,L`, "https://x/live/789.ts",
		`#EXTINF:-1,U`, "https://x/other/0.ts",
		`#EXTINF:-1,Q`, "https://x/stream.ts?from=/movie/",
	}, "\n")
	pl, _, err := Parse(doc, Options{})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 5)
	assert.Equal(t, KindMovie, pl.Entries[0].Kind)
	assert.Equal(t, KindSeries, pl.Entries[1].Kind)
	assert.Equal(t, KindLive, pl.Entries[2].Kind)
	assert.Equal(t, KindUnknown, pl.Entries[3].Kind)
	assert.Equal(t, KindUnknown, pl.Entries[4].Kind, "query string markers never classify")
}

func TestParseInvalidSource(t *testing.T) {
	_, _, err := Parse("", Options{})
	assert.ErrorIs(t, err, ErrInvalidSource)

	_, _, err = Parse("#EXTINF:-1,A\nhttp://x/a.ts\n", Options{})
	assert.ErrorIs(t, err, ErrInvalidSource)
}

func TestParseEmptyResult(t *testing.T) {
	_, _, err := Parse("#EXTM3U\n#EXTGRP:News\n", Options{})
	assert.ErrorIs(t, err, ErrEmptyResult)
}

func TestParseStrictModeSurfacesLocatorErrorAfterExhaustiveRun(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,Bad`,
		"https://x/no-extension", // fails strict validation
		`#EXTINF:-1,Good`,
		"https://x/fine.ts",
	}, "\n")
	pl, diags, err := Parse(doc, Options{StrictLocators: true})
	assert.Nil(t, pl)

	var locErr *UnusableLocatorError
	require.ErrorAs(t, err, &locErr)
	assert.Equal(t, 3, locErr.Line)

	// Processing was exhaustive: the good entry's absence of diagnostics
	// proves lines after the failure were still consumed.
	require.Len(t, diags, 2)
	assert.Equal(t, DiagUnusableLocator, diags[0].Kind)
	assert.Equal(t, DiagDiscardedMetadata, diags[1].Kind)
}

func TestParseDegradedLocatorFallback(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,Broken`,
		"/no/base/for/this.ts",
		`#EXTINF:-1,Fine`,
		"https://x/a.ts",
	}, "\n")
	pl, diags, err := Parse(doc, Options{AllowDegradedLocators: true})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 2)

	assert.True(t, pl.Entries[0].Locator.IsDegraded())
	assert.Equal(t, "/no/base/for/this.ts", pl.Entries[0].Locator.Original())
	assert.Equal(t, KindUnknown, pl.Entries[0].Kind)
	assert.False(t, pl.Entries[1].Locator.IsDegraded())

	require.Len(t, diags, 1)
	assert.Equal(t, DiagDegradedLocator, diags[0].Kind)
}

func TestParseCapturesVLCHeaders(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,One`,
		"#EXTVLCOPT:http-user-agent=Mozilla/5.0",
		"#EXTVLCOPT:http-referrer=https://r.example",
		"https://x/one.ts",
		`#EXTINF:-1,Two`,
		"https://x/two.ts",
	}, "\n")
	pl, _, err := Parse(doc, Options{CaptureHeaders: true})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 2)
	require.NotNil(t, pl.Entries[0].Headers)
	assert.Equal(t, "Mozilla/5.0", pl.Entries[0].Headers.UserAgent)
	assert.Equal(t, "https://r.example", pl.Entries[0].Headers.Referrer)
	assert.Nil(t, pl.Entries[1].Headers)
}

func TestParseSessionDataSkippedDiagnostic(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1,One`,
		`#EXT-X-SESSION-DATA:DATA-ID="com.x",VALUE="1"`,
		"https://x/one.ts",
	}, "\n")

	pl, diags, err := Parse(doc, Options{SkipSessionData: true})
	require.NoError(t, err)
	require.Len(t, pl.Entries, 1)
	require.Len(t, diags, 1)
	assert.Equal(t, DiagSessionData, diags[0].Kind)

	// Without the flag the line is an ordinary ignorable directive.
	_, diags, err = Parse(doc, Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)
}

func TestParseDeterministic(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U url-tvg=\"https://a/epg.xml\"",
		`#EXTINF:-1 tvg-id="a" group-title="G1",A S01 E02`,
		"https://x/a.m3u8",
		`#EXTINF:120.7,B`,
		"bad locator line",
		"https://x/b.ts|junk",
	}, "\n")
	opts := Options{StripSeriesMarkers: true}

	first, firstDiags, err := Parse(doc, opts)
	require.NoError(t, err)
	second, secondDiags, err := Parse(doc, opts)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmp.AllowUnexported(Locator{})); diff != "" {
		t.Fatalf("repeated parse differs (-first +second):\n%s", diff)
	}
	assert.Equal(t, firstDiags, secondDiags)
}

func TestPlaylistProjections(t *testing.T) {
	doc := strings.Join([]string{
		"#EXTM3U",
		`#EXTINF:-1 group-title="News",BBC News`,
		"https://x/1.ts",
		`#EXTINF:-1 group-title="Sport",Sky Sports`,
		"https://x/2.ts",
		`#EXTINF:-1 group-title="News",CNN`,
		"https://x/3.ts",
	}, "\n")
	pl, _, err := Parse(doc, Options{})
	require.NoError(t, err)

	assert.Len(t, pl.FilterByGroup("News"), 2)
	assert.Equal(t, []string{"News", "Sport"}, pl.Groups())

	hits := pl.Search("bbc")
	require.Len(t, hits, 1)
	assert.Equal(t, "BBC News", hits[0].Name)
}
