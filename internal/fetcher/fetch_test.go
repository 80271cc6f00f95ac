package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/channelvault/internal/m3u"
)

const sampleDoc = "#EXTM3U url-tvg=\"https://a/epg.xml\"\n" +
	"#EXTINF:-1 tvg-id=\"bbc\" group-title=\"UK\",BBC One\n" +
	"https://ex.com/bbc.m3u8\n"

func TestFetchParsesPlaylist(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	res, err := Fetch(context.Background(), srv.URL, "ChannelVault/1.0", 5*time.Second, m3u.Options{})
	require.NoError(t, err)
	assert.Equal(t, "ChannelVault/1.0", gotUA)
	assert.Equal(t, m3u.FormatM3U, res.Format)
	require.Len(t, res.Playlist.Entries, 1)
	assert.Equal(t, "BBC One", res.Playlist.Entries[0].Name)
	assert.Equal(t, "https://a/epg.xml", res.Playlist.Attributes.EPGURL)
	assert.Empty(t, res.Diagnostics)
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), srv.URL, "", 5*time.Second, m3u.Options{})
	assert.ErrorContains(t, err, "HTTP 502")
}

func TestParseSourceInvalidBody(t *testing.T) {
	_, err := ParseSource([]byte("<html>not a playlist</html>"), m3u.Options{})
	assert.ErrorIs(t, err, m3u.ErrInvalidSource)
}

func TestParseSourceBOM(t *testing.T) {
	res, err := ParseSource([]byte("\xEF\xBB\xBF"+sampleDoc), m3u.Options{})
	require.NoError(t, err)
	require.Len(t, res.Playlist.Entries, 1)
}

func TestParseSourceParallelOption(t *testing.T) {
	res, err := ParseSource([]byte(sampleDoc), m3u.Options{Workers: 4})
	require.NoError(t, err)
	require.Len(t, res.Playlist.Entries, 1)
}
