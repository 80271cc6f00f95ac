package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/channelvault/internal/m3u"
	"github.com/voyagen/channelvault/internal/models"
	"github.com/voyagen/channelvault/internal/store"
)

// fakeStore is an in-memory Store for exercising the ingest flow.
type fakeStore struct {
	mu       sync.Mutex
	sources  map[int64]*models.Source
	groups   map[string]int64 // "sourceID/name" -> id
	channels map[int64]*models.Channel
	headers  map[int64]*models.ChannelHTTPHeaders
	nextID   int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sources:  make(map[int64]*models.Source),
		groups:   make(map[string]int64),
		channels: make(map[int64]*models.Channel),
		headers:  make(map[int64]*models.ChannelHTTPHeaders),
	}
}

func (f *fakeStore) id() int64 { f.nextID++; return f.nextID }

func (f *fakeStore) CreateOrGetSource(_ context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, s := range f.sources {
		if s.Name == name {
			return id, nil
		}
	}
	id := f.id()
	f.sources[id] = &models.Source{ID: id, Name: name, URL: url, SourceType: sourceType, UserAgent: userAgent, Enabled: true}
	return id, nil
}

func (f *fakeStore) GetOrCreateGroup(_ context.Context, sourceID int64, name string, _ *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d/%s", sourceID, name)
	if id, ok := f.groups[key]; ok {
		return id, nil
	}
	id := f.id()
	f.groups[key] = id
	return id, nil
}

func (f *fakeStore) UpsertChannel(_ context.Context, ch *models.Channel) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, existing := range f.channels {
		if existing.Name == ch.Name && existing.SourceID == ch.SourceID && existing.URL == ch.URL {
			cp := *ch
			cp.ID = id
			cp.Favorite = existing.Favorite
			f.channels[id] = &cp
			return id, nil
		}
	}
	id := f.id()
	cp := *ch
	cp.ID = id
	f.channels[id] = &cp
	return id, nil
}

func (f *fakeStore) UpsertChannelHeaders(_ context.Context, channelID int64, h *models.ChannelHTTPHeaders) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.headers[channelID] = h
	return nil
}

func (f *fakeStore) RemoveStaleChannels(_ context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keep := make(map[int64]bool, len(keepIDs))
	for _, id := range keepIDs {
		keep[id] = true
	}
	var removed int64
	for id, ch := range f.channels {
		if ch.SourceID == sourceID && !keep[id] {
			delete(f.channels, id)
			removed++
		}
	}
	return removed, nil
}

func (f *fakeStore) RemoveOrphanedGroups(_ context.Context, _ int64) (int64, error) { return 0, nil }

func (f *fakeStore) UpdateSourceMetadata(_ context.Context, sourceID int64, epgURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sources[sourceID]; ok {
		now := time.Now()
		s.LastUpdated = &now
		s.EPGURL = epgURL
	}
	return nil
}

func (f *fakeStore) ListSources(_ context.Context) ([]models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Source, 0, len(f.sources))
	for _, s := range f.sources {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeStore) GetSourceByID(_ context.Context, sourceID int64) (*models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("source %d not found", sourceID)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) UpdateSource(_ context.Context, _ int64, _ store.SourceUpdate) error { return nil }
func (f *fakeStore) DeleteSource(_ context.Context, _ int64) error                      { return nil }

func (f *fakeStore) GetChannelByID(_ context.Context, channelID int64) (*models.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.channels[channelID]
	if !ok {
		return nil, fmt.Errorf("channel %d not found", channelID)
	}
	cp := *ch
	return &cp, nil
}

func (f *fakeStore) ListChannels(_ context.Context, _ store.ChannelFilter) ([]models.Channel, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, *ch)
	}
	return out, len(out), nil
}

func (f *fakeStore) ListGroups(_ context.Context, _ *int64) ([]models.Group, error) { return nil, nil }

func (f *fakeStore) ToggleChannelFavorite(_ context.Context, channelID int64, favorite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		ch.Favorite = favorite
	}
	return nil
}

const testPlaylist = `#EXTM3U url-tvg="http://epg.example.com/guide.xml"
#EXTINF:-1 tvg-id="one.example" tvg-logo="http://img.example.com/1.png" group-title="News",Channel One
#EXTVLCOPT:http-user-agent=CustomAgent/2.0
http://stream.example.com/live/one.ts
#EXTINF:-1 group-title="News",Channel Two
http://stream.example.com/live/two.ts
#EXTINF:3600 group-title="Cinema",Some /movie/ Film
http://stream.example.com/movie/film.mp4
`

func playlistServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIngestURL(t *testing.T) {
	srv := playlistServer(t, testPlaylist)
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)

	report, err := in.IngestURL(context.Background(), srv.URL, "test", "")
	require.NoError(t, err)
	assert.Equal(t, 3, report.ChannelCount)
	assert.Equal(t, int64(0), report.Removed)
	assert.Equal(t, "m3u", report.Format)

	channels, total, err := fs.ListChannels(context.Background(), store.ChannelFilter{})
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	byName := make(map[string]models.Channel)
	for _, ch := range channels {
		byName[ch.Name] = ch
	}
	one := byName["Channel One"]
	require.NotNil(t, one.TvgID)
	assert.Equal(t, "one.example", *one.TvgID)
	assert.Equal(t, models.MediaTypeLivestream, one.MediaType)
	require.NotNil(t, one.GroupID)

	film := byName["Some /movie/ Film"]
	assert.Equal(t, models.MediaTypeMovie, film.MediaType)
	assert.Equal(t, 3600, film.Duration)

	// EXTVLCOPT headers were persisted for Channel One.
	h := fs.headers[one.ID]
	require.NotNil(t, h)
	require.NotNil(t, h.UserAgent)
	assert.Equal(t, "CustomAgent/2.0", *h.UserAgent)

	// Header EPG URL landed on the source.
	src, err := fs.GetSourceByID(context.Background(), report.SourceID)
	require.NoError(t, err)
	assert.Equal(t, "http://epg.example.com/guide.xml", src.EPGURL)
	assert.NotNil(t, src.LastUpdated)
}

func TestIngestPrunesStaleChannels(t *testing.T) {
	srv := playlistServer(t, testPlaylist)
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)

	_, err := in.IngestURL(context.Background(), srv.URL, "test", "")
	require.NoError(t, err)

	shrunk := `#EXTM3U
#EXTINF:-1 group-title="News",Channel Two
http://stream.example.com/live/two.ts
`
	srv2 := playlistServer(t, shrunk)
	src, err := fs.ListSources(context.Background())
	require.NoError(t, err)
	require.Len(t, src, 1)
	fs.sources[src[0].ID].URL = srv2.URL

	report, err := in.Refresh(context.Background(), src[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChannelCount)
	assert.Equal(t, int64(2), report.Removed)

	_, total, err := fs.ListChannels(context.Background(), store.ChannelFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestIngestPreservesFavorites(t *testing.T) {
	srv := playlistServer(t, testPlaylist)
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)

	report, err := in.IngestURL(context.Background(), srv.URL, "test", "")
	require.NoError(t, err)

	channels, _, err := fs.ListChannels(context.Background(), store.ChannelFilter{})
	require.NoError(t, err)
	require.NoError(t, fs.ToggleChannelFavorite(context.Background(), channels[0].ID, true))

	_, err = in.Refresh(context.Background(), report.SourceID)
	require.NoError(t, err)

	ch, err := fs.GetChannelByID(context.Background(), channels[0].ID)
	require.NoError(t, err)
	assert.True(t, ch.Favorite)
}

func TestIngestRecordsDiagnostics(t *testing.T) {
	junk := `#EXTM3U
#EXTINF:-1,Broken
/relative/only.ts
#EXTINF:-1,Fine
http://stream.example.com/live/ok.ts
`
	srv := playlistServer(t, junk)
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)

	report, err := in.IngestURL(context.Background(), srv.URL, "test", "")
	require.NoError(t, err)
	assert.Equal(t, 1, report.ChannelCount)
	require.NotEmpty(t, report.Diagnostics)

	last := in.LastReport(report.SourceID)
	require.NotNil(t, last)
	assert.Equal(t, report.ChannelCount, last.ChannelCount)
}

func TestIngestEmptyURL(t *testing.T) {
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)
	_, err := in.IngestURL(context.Background(), "", "test", "")
	assert.Error(t, err)
}

func TestEnqueueRefreshWithoutQueue(t *testing.T) {
	fs := newFakeStore()
	in := NewIngester(fs, nil, m3u.Options{}, 5*time.Second)
	err := in.EnqueueRefresh(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNoQueue)
}
