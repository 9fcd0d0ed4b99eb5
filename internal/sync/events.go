package sync

import "time"

const (
	EventHistoryUpdate   = "history.update"
	EventHistoryDelete   = "history.delete"
	EventFavoritesAdd    = "favorites.add"
	EventFavoritesDelete = "favorites.delete"
)

// Event is pushed to every feed connection of UserID.
type Event struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	AnimeID    string    `json:"anime_id"`
	AnimeTitle string    `json:"anime_title,omitempty"`
	Progress   *int      `json:"progress,omitempty"`
	Season     *int      `json:"season,omitempty"`
	Episode    *int      `json:"episode,omitempty"`
	At         time.Time `json:"at"`
}
