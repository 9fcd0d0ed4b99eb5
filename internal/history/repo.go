package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/TETRIX8/anime/internal/metrics"
	"github.com/TETRIX8/anime/pkg/database"
	"github.com/TETRIX8/anime/pkg/models"
)

var ErrNotFound = errors.New("history entry not found")

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

const columns = `id, user_id, anime_id, anime_title, anime_image, watched_at, progress, season, episode`

// Upsert records a watch event. The first event for a (user, anime) pair
// creates the entry; later ones overwrite watched_at, progress, season and
// episode in place and keep the original id. The unique index makes this a
// single atomic statement.
func (r *Repo) Upsert(ctx context.Context, e models.HistoryEntry) (saved models.HistoryEntry, err error) {
	defer func() { metrics.ObserveStore("history", "upsert", err) }()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.WatchedAt.IsZero() {
		e.WatchedAt = time.Now().UTC()
	}

	_, err = r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO watch_history (`+columns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, anime_id) DO UPDATE SET
			watched_at = excluded.watched_at,
			progress = excluded.progress,
			season = excluded.season,
			episode = excluded.episode
	`), e.ID, e.UserID, e.AnimeID, e.AnimeTitle, e.AnimeImage, e.WatchedAt, e.Progress, e.Season, e.Episode)
	if err != nil {
		return models.HistoryEntry{}, fmt.Errorf("upsert history: %w", err)
	}

	got, err := r.Get(ctx, e.UserID, e.AnimeID)
	if err != nil {
		return models.HistoryEntry{}, err
	}
	return *got, nil
}

func (r *Repo) Get(ctx context.Context, userID, animeID string) (*models.HistoryEntry, error) {
	row := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
		SELECT `+columns+`
		FROM watch_history
		WHERE user_id = ? AND anime_id = ?
	`), userID, animeID)

	e, err := scan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get history: %w", err)
	}
	return &e, nil
}

// List returns a user's entries, most recently watched first, and the
// total entry count for the user.
func (r *Repo) List(ctx context.Context, userID string, limit, offset int) (items []models.HistoryEntry, total int, err error) {
	defer func() { metrics.ObserveStore("history", "list", err) }()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if err := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
		SELECT COUNT(*) FROM watch_history WHERE user_id = ?
	`), userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count history: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(`
		SELECT `+columns+`
		FROM watch_history
		WHERE user_id = ?
		ORDER BY watched_at DESC
		LIMIT ? OFFSET ?
	`), userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list history: %w", err)
	}
	defer rows.Close()

	items = make([]models.HistoryEntry, 0, limit)
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan history row: %w", err)
		}
		items = append(items, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return items, total, nil
}

func (r *Repo) Delete(ctx context.Context, userID, animeID string) (err error) {
	defer func() { metrics.ObserveStore("history", "delete", err) }()

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		DELETE FROM watch_history
		WHERE user_id = ? AND anime_id = ?
	`), userID, animeID)
	if err != nil {
		return fmt.Errorf("delete history: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(s scanner) (models.HistoryEntry, error) {
	var (
		e               models.HistoryEntry
		season, episode sql.NullInt64
	)
	if err := s.Scan(&e.ID, &e.UserID, &e.AnimeID, &e.AnimeTitle, &e.AnimeImage,
		&e.WatchedAt, &e.Progress, &season, &episode); err != nil {
		return e, err
	}
	e.Season = nullInt(season)
	e.Episode = nullInt(episode)
	return e, nil
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
