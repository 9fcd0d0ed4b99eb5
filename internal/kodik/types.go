package kodik

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

type Translation struct {
	ID    int    `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Material is one row from the provider: a single (title, translation)
// combination. The same show usually appears once per voice-over studio.
type Material struct {
	ID               string          `json:"id"`
	Type             string          `json:"type"`
	Link             string          `json:"link"`
	Title            string          `json:"title"`
	TitleOrig        string          `json:"title_orig"`
	OtherTitle       string          `json:"other_title"`
	Translation      *Translation    `json:"translation"`
	Year             *int            `json:"year"`
	LastSeason       *int            `json:"last_season,omitempty"`
	LastEpisode      *int            `json:"last_episode,omitempty"`
	EpisodesCount    *int            `json:"episodes_count,omitempty"`
	KinopoiskID      string          `json:"kinopoisk_id,omitempty"`
	ImdbID           string          `json:"imdb_id,omitempty"`
	ShikimoriID      string          `json:"shikimori_id,omitempty"`
	WorldartLink     string          `json:"worldart_link,omitempty"`
	Quality          string          `json:"quality"`
	Camrip           bool            `json:"camrip"`
	Screenshots      []string        `json:"screenshots"`
	BlockedCountries []string        `json:"blocked_countries"`
	CreatedAt        string          `json:"created_at"`
	UpdatedAt        string          `json:"updated_at"`
	MaterialData     json.RawMessage `json:"material_data,omitempty"`
	Seasons          json.RawMessage `json:"seasons,omitempty"`
}

// Response is one page from /list or /search after row decoding.
type Response struct {
	Time     string     `json:"time"`
	Total    int        `json:"total"`
	PrevPage *string    `json:"prev_page"`
	NextPage *string    `json:"next_page"`
	Results  []Material `json:"results"`
}

// envelope defers row decoding so one malformed row does not sink a page.
type envelope struct {
	Time     string            `json:"time"`
	Total    int               `json:"total"`
	PrevPage *string           `json:"prev_page"`
	NextPage *string           `json:"next_page"`
	Results  []json.RawMessage `json:"results"`
}

// Query is the union of parameters /list and /search understand. Zero
// values are left out of the request.
type Query struct {
	Limit            int
	Sort             string
	Order            string
	Types            string
	AnimeKind        string
	Year             string
	TranslationID    string
	Camrip           *bool
	Countries        string
	WithMaterialData bool
	WithEpisodesData bool
	Title            string
	ID               string
	Next             string
}

func (q Query) Values(token string) url.Values {
	v := url.Values{}
	v.Set("token", token)
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	set := func(key, val string) {
		if val = strings.TrimSpace(val); val != "" {
			v.Set(key, val)
		}
	}
	set("sort", q.Sort)
	set("order", q.Order)
	set("types", q.Types)
	set("anime_kind", q.AnimeKind)
	set("year", q.Year)
	set("translation_id", q.TranslationID)
	set("countries", q.Countries)
	set("title", q.Title)
	set("id", q.ID)
	set("next", q.Next)
	if q.Camrip != nil {
		v.Set("camrip", strconv.FormatBool(*q.Camrip))
	}
	if q.WithMaterialData {
		v.Set("with_material_data", "true")
	}
	if q.WithEpisodesData {
		v.Set("with_episodes_data", "true")
	}
	return v
}

// stripToken removes the API token from page links the provider echoes
// back so it never reaches our callers. The rest of the link is kept as
// sent, including links url.Parse would reject.
func stripToken(raw *string) *string {
	if raw == nil || *raw == "" {
		return raw
	}
	base, rest, ok := strings.Cut(*raw, "?")
	if !ok {
		return raw
	}
	query, fragment, hasFragment := strings.Cut(rest, "#")

	kept := make([]string, 0, strings.Count(query, "&")+1)
	for _, part := range strings.Split(query, "&") {
		key, _, _ := strings.Cut(part, "=")
		if name, err := url.QueryUnescape(key); key == "token" || (err == nil && name == "token") {
			continue
		}
		if part != "" {
			kept = append(kept, part)
		}
	}

	s := base
	if len(kept) > 0 {
		s += "?" + strings.Join(kept, "&")
	}
	if hasFragment {
		s += "#" + fragment
	}
	return &s
}
