package favorites

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

var (
	ErrNotFound = errors.New("favorite not found")
	ErrConflict = errors.New("already in favorites")
)

type Repo struct {
	DB *database.DB
}

func NewRepo(db *database.DB) *Repo {
	return &Repo{DB: db}
}

// Add stores a favorite. A second add for the same (user, anime) pair
// leaves the existing row alone and returns ErrConflict.
func (r *Repo) Add(ctx context.Context, f models.Favorite) (saved models.Favorite, err error) {
	defer func() {
		if errors.Is(err, ErrConflict) {
			metrics.ObserveStore("favorites", "add_conflict", nil)
			return
		}
		metrics.ObserveStore("favorites", "add", err)
	}()

	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.AddedAt.IsZero() {
		f.AddedAt = time.Now().UTC()
	}

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		INSERT INTO favorites (id, user_id, anime_id, anime_title, anime_image, added_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, anime_id) DO NOTHING
	`), f.ID, f.UserID, f.AnimeID, f.AnimeTitle, f.AnimeImage, f.AddedAt)
	if err != nil {
		return models.Favorite{}, fmt.Errorf("add favorite: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Favorite{}, fmt.Errorf("add favorite rows: %w", err)
	}
	if n == 0 {
		return models.Favorite{}, ErrConflict
	}
	return f, nil
}

func (r *Repo) Exists(ctx context.Context, userID, animeID string) (bool, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
		SELECT COUNT(*) FROM favorites WHERE user_id = ? AND anime_id = ?
	`), userID, animeID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check favorite: %w", err)
	}
	return n > 0, nil
}

func (r *Repo) List(ctx context.Context, userID string, limit, offset int) (items []models.Favorite, total int, err error) {
	defer func() { metrics.ObserveStore("favorites", "list", err) }()

	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	if err := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
		SELECT COUNT(*) FROM favorites WHERE user_id = ?
	`), userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count favorites: %w", err)
	}

	rows, err := r.DB.QueryContext(ctx, r.DB.Rebind(`
		SELECT id, user_id, anime_id, anime_title, anime_image, added_at
		FROM favorites
		WHERE user_id = ?
		ORDER BY added_at DESC
		LIMIT ? OFFSET ?
	`), userID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	items = make([]models.Favorite, 0, limit)
	for rows.Next() {
		var f models.Favorite
		if err := rows.Scan(&f.ID, &f.UserID, &f.AnimeID, &f.AnimeTitle, &f.AnimeImage, &f.AddedAt); err != nil {
			return nil, 0, fmt.Errorf("scan favorite row: %w", err)
		}
		items = append(items, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows err: %w", err)
	}
	return items, total, nil
}

func (r *Repo) Delete(ctx context.Context, userID, animeID string) (err error) {
	defer func() { metrics.ObserveStore("favorites", "delete", err) }()

	res, err := r.DB.ExecContext(ctx, r.DB.Rebind(`
		DELETE FROM favorites
		WHERE user_id = ? AND anime_id = ?
	`), userID, animeID)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repo) Get(ctx context.Context, userID, animeID string) (*models.Favorite, error) {
	var f models.Favorite
	err := r.DB.QueryRowContext(ctx, r.DB.Rebind(`
		SELECT id, user_id, anime_id, anime_title, anime_image, added_at
		FROM favorites
		WHERE user_id = ? AND anime_id = ?
	`), userID, animeID).Scan(&f.ID, &f.UserID, &f.AnimeID, &f.AnimeTitle, &f.AnimeImage, &f.AddedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get favorite: %w", err)
	}
	return &f, nil
}
