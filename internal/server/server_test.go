package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voyagen/channelvault/internal/config"
	"github.com/voyagen/channelvault/internal/m3u"
	"github.com/voyagen/channelvault/internal/models"
	"github.com/voyagen/channelvault/internal/service"
	"github.com/voyagen/channelvault/internal/store"
)

// stubStore returns canned data and records favorite toggles.
type stubStore struct {
	channels  map[int64]models.Channel
	favorites map[int64]bool
}

func newStubStore() *stubStore {
	return &stubStore{
		channels: map[int64]models.Channel{
			1: {ID: 1, Name: "Channel One", URL: "http://x/live/1.ts"},
		},
		favorites: map[int64]bool{},
	}
}

func (s *stubStore) CreateOrGetSource(context.Context, string, string, int16, string) (int64, error) {
	return 1, nil
}
func (s *stubStore) GetOrCreateGroup(context.Context, int64, string, *string) (int64, error) {
	return 1, nil
}
func (s *stubStore) UpsertChannel(context.Context, *models.Channel) (int64, error) { return 1, nil }
func (s *stubStore) UpsertChannelHeaders(context.Context, int64, *models.ChannelHTTPHeaders) error {
	return nil
}
func (s *stubStore) RemoveStaleChannels(context.Context, int64, []int64) (int64, error) {
	return 0, nil
}
func (s *stubStore) RemoveOrphanedGroups(context.Context, int64) (int64, error) { return 0, nil }
func (s *stubStore) UpdateSourceMetadata(context.Context, int64, string) error  { return nil }
func (s *stubStore) ListSources(context.Context) ([]models.Source, error)       { return nil, nil }
func (s *stubStore) GetSourceByID(_ context.Context, id int64) (*models.Source, error) {
	if id != 1 {
		return nil, store.ErrNotFound
	}
	return &models.Source{ID: 1, Name: "test", Enabled: true}, nil
}
func (s *stubStore) UpdateSource(context.Context, int64, store.SourceUpdate) error { return nil }
func (s *stubStore) DeleteSource(context.Context, int64) error                     { return nil }
func (s *stubStore) GetChannelByID(_ context.Context, id int64) (*models.Channel, error) {
	ch, ok := s.channels[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &ch, nil
}
func (s *stubStore) ListChannels(_ context.Context, _ store.ChannelFilter) ([]models.Channel, int, error) {
	out := make([]models.Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, ch)
	}
	return out, len(out), nil
}
func (s *stubStore) ListGroups(context.Context, *int64) ([]models.Group, error) { return nil, nil }
func (s *stubStore) ToggleChannelFavorite(_ context.Context, id int64, fav bool) error {
	if _, ok := s.channels[id]; !ok {
		return store.ErrNotFound
	}
	s.favorites[id] = fav
	return nil
}

func newTestServer(t *testing.T) (*Server, *stubStore) {
	t.Helper()
	st := newStubStore()
	cfg := &config.Config{ServerPort: "0", UserAgent: "test", Timeout: time.Second}
	in := service.NewIngester(st, nil, m3u.Options{}, time.Second)
	return New(st, cfg, in), st
}

func doRequest(t *testing.T, srv *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListChannelsInvalidParams(t *testing.T) {
	srv, _ := newTestServer(t)
	for _, path := range []string{
		"/api/channels?source_id=abc",
		"/api/channels?media_type=x",
		"/api/channels?favorite=maybe",
		"/api/channels?degraded=2x",
		"/api/channels?limit=abc",
	} {
		w := doRequest(t, srv, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestListChannels(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/channels?degraded=false&limit=10", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Channels []models.Channel `json:"channels"`
		Total    int              `json:"total"`
		Limit    int              `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Total)
	assert.Equal(t, 10, resp.Limit)
}

func TestGetChannelNotFound(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/channels/99", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	var apiErr APIError
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.Status)
}

func TestToggleFavorite(t *testing.T) {
	srv, st := newTestServer(t)
	w := doRequest(t, srv, http.MethodPatch, "/api/channels/1/favorite", `{"favorite":true}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, st.favorites[1])
}

func TestAddSourceValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	w := doRequest(t, srv, http.MethodPost, "/api/sources", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/sources", `{"url":"ftp://nope"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSourceReportMissing(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodGet, "/api/sources/1/report", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshUnknownSource(t *testing.T) {
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/api/sources/42/refresh", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefreshAsyncWithoutQueue(t *testing.T) {
	// Async refresh needs the Redis-backed job queue; without one the
	// request is rejected rather than silently run inline.
	srv, _ := newTestServer(t)
	w := doRequest(t, srv, http.MethodPost, "/api/sources/1/refresh?async=true", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = doRequest(t, srv, http.MethodPost, "/api/sources/1/refresh?async=maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
