// Package service implements source ingestion: fetch a playlist, parse it,
// and reconcile the parsed entries against the store.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/voyagen/channelvault/internal/cache"
	"github.com/voyagen/channelvault/internal/fetcher"
	"github.com/voyagen/channelvault/internal/log"
	"github.com/voyagen/channelvault/internal/m3u"
	"github.com/voyagen/channelvault/internal/models"
	"github.com/voyagen/channelvault/internal/store"
)

// ErrIngestRunning is returned when a refresh for the same source is already
// in progress.
var ErrIngestRunning = errors.New("ingest already running for this source")

// ErrNoQueue is returned when an async refresh is requested but no Redis
// queue is configured.
var ErrNoQueue = errors.New("job queue unavailable (redis not configured)")

// Report summarises one completed ingest run.
type Report struct {
	SourceID     int64            `json:"source_id"`
	SourceName   string           `json:"source_name"`
	ChannelCount int              `json:"channel_count"`
	Removed      int64            `json:"removed"`
	Format       string           `json:"format"`
	Diagnostics  []m3u.Diagnostic `json:"diagnostics,omitempty"`
	StartedAt    time.Time        `json:"started_at"`
	Duration     time.Duration    `json:"duration"`
}

// Ingester fetches playlist sources and reconciles them into the store. The
// Redis client is optional; without it, concurrent refreshes of the same
// source are only serialised within this process.
type Ingester struct {
	store   store.Store
	redis   *cache.Redis
	opts    m3u.Options
	timeout time.Duration
	logger  zerolog.Logger

	mu      sync.Mutex
	running map[int64]bool
	reports map[int64]*Report
}

// NewIngester creates an Ingester. redis may be nil.
func NewIngester(s store.Store, redis *cache.Redis, opts m3u.Options, timeout time.Duration) *Ingester {
	// Per-channel HTTP headers are persisted, so always collect them.
	opts.CaptureHeaders = true
	return &Ingester{
		store:   s,
		redis:   redis,
		opts:    opts,
		timeout: timeout,
		logger:  log.With("ingest"),
		running: make(map[int64]bool),
		reports: make(map[int64]*Report),
	}
}

// LastReport returns the most recent ingest report for a source, or nil.
func (in *Ingester) LastReport(sourceID int64) *Report {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reports[sourceID]
}

// IngestURL registers (or finds) a source by name and runs a full ingest of
// its URL. sourceName defaults to "m3u" when empty.
func (in *Ingester) IngestURL(ctx context.Context, m3uURL, sourceName, userAgent string) (*Report, error) {
	if m3uURL == "" {
		return nil, fmt.Errorf("m3u URL is required")
	}
	if sourceName == "" {
		sourceName = "m3u"
	}
	sourceID, err := in.store.CreateOrGetSource(ctx, sourceName, m3uURL, models.SourceTypeM3ULink, userAgent)
	if err != nil {
		return nil, fmt.Errorf("CreateOrGetSource: %w", err)
	}
	return in.ingest(ctx, sourceID, sourceName, m3uURL, userAgent)
}

// Refresh re-runs the ingest for an existing source.
func (in *Ingester) Refresh(ctx context.Context, sourceID int64) (*Report, error) {
	src, err := in.store.GetSourceByID(ctx, sourceID)
	if err != nil {
		return nil, fmt.Errorf("GetSourceByID: %w", err)
	}
	if !src.Enabled {
		return nil, fmt.Errorf("source %d is disabled", sourceID)
	}
	return in.ingest(ctx, src.ID, src.Name, src.URL, src.UserAgent)
}

// EnqueueRefresh queues a refresh job for the worker loop instead of running
// it inline. Requires a Redis queue.
func (in *Ingester) EnqueueRefresh(ctx context.Context, sourceID int64) error {
	if in.redis == nil {
		return ErrNoQueue
	}
	src, err := in.store.GetSourceByID(ctx, sourceID)
	if err != nil {
		return fmt.Errorf("GetSourceByID: %w", err)
	}
	if !src.Enabled {
		return fmt.Errorf("source %d is disabled", sourceID)
	}
	job := cache.IngestJob{
		SourceID:   src.ID,
		SourceName: src.Name,
		URL:        src.URL,
		UserAgent:  src.UserAgent,
	}
	if err := cache.Enqueue(ctx, in.redis, cache.DefaultQueue, job); err != nil {
		return fmt.Errorf("enqueue: %w", err)
	}
	in.logger.Info().Int64("source_id", src.ID).Str("source", src.Name).Msg("refresh queued")
	return nil
}

func (in *Ingester) ingest(ctx context.Context, sourceID int64, sourceName, url, userAgent string) (*Report, error) {
	release, err := in.acquire(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	defer release()

	started := time.Now()
	logger := in.logger.With().Int64("source_id", sourceID).Str("source", sourceName).Logger()
	logger.Info().Str("url", url).Msg("ingest started")

	result, err := fetcher.Fetch(ctx, url, userAgent, in.timeout, in.opts)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	for _, d := range result.Diagnostics {
		logger.Debug().Int("line", d.Line).Stringer("kind", d.Kind).Str("detail", d.Detail).Msg("parse diagnostic")
	}

	// Upsert all channels from the playlist and track their IDs so stale
	// entries can be pruned afterwards.
	keepIDs := make([]int64, 0, len(result.Playlist.Entries))
	groupIDs := make(map[string]int64)

	for i := range result.Playlist.Entries {
		// Check for context cancellation between iterations to allow
		// graceful shutdown during long ingests.
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingest cancelled: %w", err)
		}

		entry := &result.Playlist.Entries[i]
		ch := channelFromEntry(entry, sourceID)

		if gname := entry.Attrs.GroupTitle; gname != "" {
			gid, ok := groupIDs[gname]
			if !ok {
				gid, err = in.store.GetOrCreateGroup(ctx, sourceID, gname, ch.Image)
				if err != nil {
					return nil, fmt.Errorf("GetOrCreateGroup: %w", err)
				}
				groupIDs[gname] = gid
			}
			ch.GroupID = &gid
		}

		cid, err := in.store.UpsertChannel(ctx, ch)
		if err != nil {
			return nil, fmt.Errorf("UpsertChannel: %w", err)
		}
		keepIDs = append(keepIDs, cid)

		if h := headersFromEntry(entry); h != nil {
			if err := in.store.UpsertChannelHeaders(ctx, cid, h); err != nil {
				return nil, fmt.Errorf("UpsertChannelHeaders: %w", err)
			}
		}
	}

	// Remove channels that are no longer present upstream, then groups that
	// lost all their channels.
	removed, err := in.store.RemoveStaleChannels(ctx, sourceID, keepIDs)
	if err != nil {
		return nil, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	if _, err := in.store.RemoveOrphanedGroups(ctx, sourceID); err != nil {
		return nil, fmt.Errorf("RemoveOrphanedGroups: %w", err)
	}
	if err := in.store.UpdateSourceMetadata(ctx, sourceID, result.Playlist.Attributes.EPGURL); err != nil {
		return nil, fmt.Errorf("UpdateSourceMetadata: %w", err)
	}

	report := &Report{
		SourceID:     sourceID,
		SourceName:   sourceName,
		ChannelCount: len(keepIDs),
		Removed:      removed,
		Format:       result.Format.String(),
		Diagnostics:  result.Diagnostics,
		StartedAt:    started,
		Duration:     time.Since(started),
	}
	in.mu.Lock()
	in.reports[sourceID] = report
	in.mu.Unlock()

	logger.Info().
		Int("channels", report.ChannelCount).
		Int64("removed", removed).
		Int("diagnostics", len(result.Diagnostics)).
		Dur("took", report.Duration).
		Msg("ingest finished")
	return report, nil
}

// acquire serialises ingests per source. With Redis available it takes a
// distributed lock as well, so multiple instances do not refresh the same
// source concurrently.
func (in *Ingester) acquire(ctx context.Context, sourceID int64) (func(), error) {
	in.mu.Lock()
	if in.running[sourceID] {
		in.mu.Unlock()
		return nil, ErrIngestRunning
	}
	in.running[sourceID] = true
	in.mu.Unlock()

	localRelease := func() {
		in.mu.Lock()
		delete(in.running, sourceID)
		in.mu.Unlock()
	}

	if in.redis == nil {
		return localRelease, nil
	}
	key := fmt.Sprintf("channelvault:lock:ingest:%d", sourceID)
	unlock, err := cache.TryLock(ctx, in.redis, key, 10*time.Minute)
	if err != nil {
		localRelease()
		if errors.Is(err, cache.ErrLocked) {
			return nil, ErrIngestRunning
		}
		return nil, err
	}
	return func() {
		unlock()
		localRelease()
	}, nil
}

// RunWorker consumes ingest jobs from the Redis queue until ctx is cancelled.
// It is a no-op without a Redis client.
func (in *Ingester) RunWorker(ctx context.Context) {
	if in.redis == nil {
		return
	}
	in.logger.Info().Str("queue", cache.DefaultQueue).Msg("ingest worker started")
	for {
		if ctx.Err() != nil {
			in.logger.Info().Msg("ingest worker stopped")
			return
		}
		job, err := cache.Dequeue(ctx, in.redis, cache.DefaultQueue, 5*time.Second)
		if err != nil {
			in.logger.Error().Err(err).Msg("dequeue failed")
			continue
		}
		if job == nil {
			continue
		}
		if _, err := in.ingest(ctx, job.SourceID, job.SourceName, job.URL, job.UserAgent); err != nil {
			if errors.Is(err, ErrIngestRunning) {
				continue
			}
			in.logger.Error().Err(err).Int64("source_id", job.SourceID).Msg("ingest job failed")
		}
	}
}

// channelFromEntry maps one parsed playlist entry onto a channel row.
func channelFromEntry(e *m3u.Entry, sourceID int64) *models.Channel {
	ch := &models.Channel{
		Name:      e.Name,
		URL:       e.Locator.String(),
		MediaType: models.MediaTypeFromEntry(*e),
		Duration:  e.Duration,
		Degraded:  e.Locator.IsDegraded(),
		SourceID:  sourceID,
	}
	if e.Attrs.ID != "" {
		id := e.Attrs.ID
		ch.TvgID = &id
	}
	if e.Attrs.GroupTitle != "" {
		g := e.Attrs.GroupTitle
		ch.Group = &g
	}
	if e.Attrs.Logo != "" {
		logo := e.Attrs.Logo
		ch.Image = &logo
	}
	return ch
}

// headersFromEntry converts parsed per-entry headers, or nil when absent.
func headersFromEntry(e *m3u.Entry) *models.ChannelHTTPHeaders {
	if e.Headers == nil {
		return nil
	}
	h := &models.ChannelHTTPHeaders{}
	if e.Headers.Referrer != "" {
		v := e.Headers.Referrer
		h.Referrer = &v
	}
	if e.Headers.UserAgent != "" {
		v := e.Headers.UserAgent
		h.UserAgent = &v
	}
	if e.Headers.Origin != "" {
		v := e.Headers.Origin
		h.HTTPOrigin = &v
	}
	return h
}
