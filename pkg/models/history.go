package models

import "time"

// HistoryEntry is the latest watch state of one anime for one user.
// There is at most one entry per (UserID, AnimeID).
type HistoryEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AnimeID    string    `json:"anime_id"`
	AnimeTitle string    `json:"anime_title"`
	AnimeImage string    `json:"anime_image"`
	WatchedAt  time.Time `json:"watched_at"`
	Progress   int       `json:"progress"` // seconds
	Season     *int      `json:"season,omitempty"`
	Episode    *int      `json:"episode,omitempty"`
}
