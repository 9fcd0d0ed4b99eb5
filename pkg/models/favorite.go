package models

import "time"

type Favorite struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	AnimeID    string    `json:"anime_id"`
	AnimeTitle string    `json:"anime_title"`
	AnimeImage string    `json:"anime_image"`
	AddedAt    time.Time `json:"added_at"`
}
