package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voyagen/channelvault/internal/models"
)

// Postgres implements Store using PostgreSQL.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres store from a DSN. Caller must call Close
// when done.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Close closes the connection pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) CreateOrGetSource(ctx context.Context, name, url string, sourceType int16, userAgent string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO sources (name, source_type, url, user_agent, enabled)
		 VALUES ($1, $2, $3, NULLIF($4,''), true)
		 ON CONFLICT (name) DO UPDATE SET url = EXCLUDED.url, user_agent = EXCLUDED.user_agent
		 RETURNING id`,
		name, sourceType, url, userAgent,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("CreateOrGetSource: %w", err)
	}
	return id, nil
}

func (p *Postgres) GetOrCreateGroup(ctx context.Context, sourceID int64, name string, image *string) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO groups (name, image, source_id) VALUES ($1, $2, $3)
		 ON CONFLICT (name, source_id) DO UPDATE SET image = COALESCE(EXCLUDED.image, groups.image)
		 RETURNING id`,
		name, image, sourceID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("GetOrCreateGroup: %w", err)
	}
	return id, nil
}

func (p *Postgres) UpsertChannel(ctx context.Context, ch *models.Channel) (int64, error) {
	var id int64
	err := p.pool.QueryRow(ctx,
		`INSERT INTO channels (name, tvg_id, image, url, media_type, duration, degraded, source_id, group_id, favorite)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (name, source_id, url) DO UPDATE SET
		   tvg_id = EXCLUDED.tvg_id, image = EXCLUDED.image,
		   media_type = EXCLUDED.media_type, duration = EXCLUDED.duration,
		   degraded = EXCLUDED.degraded, group_id = EXCLUDED.group_id
		 RETURNING id`,
		ch.Name, ch.TvgID, ch.Image, ch.URL, ch.MediaType, ch.Duration, ch.Degraded, ch.SourceID, ch.GroupID, ch.Favorite,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("UpsertChannel: %w", err)
	}
	return id, nil
}

func (p *Postgres) UpsertChannelHeaders(ctx context.Context, channelID int64, h *models.ChannelHTTPHeaders) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO channel_http_headers (channel_id, referrer, user_agent, http_origin)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (channel_id) DO UPDATE SET
		   referrer = EXCLUDED.referrer, user_agent = EXCLUDED.user_agent,
		   http_origin = EXCLUDED.http_origin`,
		channelID, h.Referrer, h.UserAgent, h.HTTPOrigin,
	)
	if err != nil {
		return fmt.Errorf("UpsertChannelHeaders: %w", err)
	}
	return nil
}

func (p *Postgres) RemoveStaleChannels(ctx context.Context, sourceID int64, keepIDs []int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM channels WHERE source_id = $1 AND NOT (id = ANY($2))`,
		sourceID, keepIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveStaleChannels: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) RemoveOrphanedGroups(ctx context.Context, sourceID int64) (int64, error) {
	tag, err := p.pool.Exec(ctx,
		`DELETE FROM groups WHERE source_id = $1
		 AND NOT EXISTS (SELECT 1 FROM channels WHERE channels.group_id = groups.id)`,
		sourceID,
	)
	if err != nil {
		return 0, fmt.Errorf("RemoveOrphanedGroups: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *Postgres) UpdateSourceMetadata(ctx context.Context, sourceID int64, epgURL string) error {
	_, err := p.pool.Exec(ctx,
		`UPDATE sources SET last_updated = NOW(), epg_url = NULLIF($2,'') WHERE id = $1`,
		sourceID, epgURL,
	)
	if err != nil {
		return fmt.Errorf("UpdateSourceMetadata: %w", err)
	}
	return nil
}

func (p *Postgres) ListSources(ctx context.Context) ([]models.Source, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, name, COALESCE(url,''), source_type, COALESCE(user_agent,''), enabled,
		        COALESCE(epg_url,''), last_updated, created_at
		 FROM sources ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("ListSources: %w", err)
	}
	defer rows.Close()

	var out []models.Source
	for rows.Next() {
		var s models.Source
		if err := rows.Scan(&s.ID, &s.Name, &s.URL, &s.SourceType, &s.UserAgent,
			&s.Enabled, &s.EPGURL, &s.LastUpdated, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("ListSources scan: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (p *Postgres) GetSourceByID(ctx context.Context, sourceID int64) (*models.Source, error) {
	var s models.Source
	err := p.pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(url,''), source_type, COALESCE(user_agent,''), enabled,
		        COALESCE(epg_url,''), last_updated, created_at
		 FROM sources WHERE id = $1`, sourceID,
	).Scan(&s.ID, &s.Name, &s.URL, &s.SourceType, &s.UserAgent,
		&s.Enabled, &s.EPGURL, &s.LastUpdated, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetSourceByID: %w", err)
	}
	return &s, nil
}

func (p *Postgres) UpdateSource(ctx context.Context, sourceID int64, fields SourceUpdate) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 5)
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if fields.Name != nil {
		add("name", *fields.Name)
	}
	if fields.URL != nil {
		add("url", *fields.URL)
	}
	if fields.UserAgent != nil {
		add("user_agent", *fields.UserAgent)
	}
	if fields.Enabled != nil {
		add("enabled", *fields.Enabled)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, sourceID)
	q := fmt.Sprintf("UPDATE sources SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))
	if _, err := p.pool.Exec(ctx, q, args...); err != nil {
		return fmt.Errorf("UpdateSource: %w", err)
	}
	return nil
}

func (p *Postgres) DeleteSource(ctx context.Context, sourceID int64) error {
	if _, err := p.pool.Exec(ctx, `DELETE FROM sources WHERE id = $1`, sourceID); err != nil {
		return fmt.Errorf("DeleteSource: %w", err)
	}
	return nil
}

const channelColumns = `c.id, c.name, c.tvg_id, c.image, COALESCE(c.url,''), c.media_type,
	c.duration, c.degraded, c.source_id, c.group_id, c.favorite, g.name`

func scanChannel(row interface{ Scan(...any) error }) (models.Channel, error) {
	var ch models.Channel
	err := row.Scan(&ch.ID, &ch.Name, &ch.TvgID, &ch.Image, &ch.URL, &ch.MediaType,
		&ch.Duration, &ch.Degraded, &ch.SourceID, &ch.GroupID, &ch.Favorite, &ch.GroupName)
	return ch, err
}

func (p *Postgres) GetChannelByID(ctx context.Context, channelID int64) (*models.Channel, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+channelColumns+`
		 FROM channels c LEFT JOIN groups g ON g.id = c.group_id
		 WHERE c.id = $1`, channelID)
	ch, err := scanChannel(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetChannelByID: %w", err)
	}
	return &ch, nil
}

func (p *Postgres) ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, int, error) {
	where := []string{"TRUE"}
	args := []any{}
	cond := func(expr string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(expr, len(args)))
	}
	if filter.SourceID != nil {
		cond("c.source_id = $%d", *filter.SourceID)
	}
	if filter.GroupID != nil {
		cond("c.group_id = $%d", *filter.GroupID)
	}
	if filter.MediaType != nil {
		cond("c.media_type = $%d", *filter.MediaType)
	}
	if filter.Favorite != nil {
		cond("c.favorite = $%d", *filter.Favorite)
	}
	if filter.Degraded != nil {
		cond("c.degraded = $%d", *filter.Degraded)
	}
	if filter.Search != "" {
		cond("c.name ILIKE $%d", "%"+filter.Search+"%")
	}
	clause := strings.Join(where, " AND ")

	var total int
	if err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM channels c WHERE `+clause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ListChannels count: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	args = append(args, limit, filter.Offset)
	q := fmt.Sprintf(
		`SELECT `+channelColumns+`
		 FROM channels c LEFT JOIN groups g ON g.id = c.group_id
		 WHERE %s ORDER BY c.id LIMIT $%d OFFSET $%d`,
		clause, len(args)-1, len(args))

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ListChannels: %w", err)
	}
	defer rows.Close()

	var out []models.Channel
	for rows.Next() {
		ch, err := scanChannel(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ListChannels scan: %w", err)
		}
		out = append(out, ch)
	}
	return out, total, rows.Err()
}

func (p *Postgres) ListGroups(ctx context.Context, sourceID *int64) ([]models.Group, error) {
	q := `SELECT id, name, image, source_id FROM groups`
	args := []any{}
	if sourceID != nil {
		q += ` WHERE source_id = $1`
		args = append(args, *sourceID)
	}
	q += ` ORDER BY name`
	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("ListGroups: %w", err)
	}
	defer rows.Close()

	var out []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Image, &g.SourceID); err != nil {
			return nil, fmt.Errorf("ListGroups scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (p *Postgres) ToggleChannelFavorite(ctx context.Context, channelID int64, favorite bool) error {
	if _, err := p.pool.Exec(ctx,
		`UPDATE channels SET favorite = $2 WHERE id = $1`, channelID, favorite); err != nil {
		return fmt.Errorf("ToggleChannelFavorite: %w", err)
	}
	return nil
}
