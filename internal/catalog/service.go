// Package catalog turns provider rows into deduplicated show listings.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/kodik"
	"github.com/TETRIX8/anime/internal/metrics"
)

var (
	ErrNotFound     = errors.New("anime not found")
	ErrInvalidQuery = errors.New("invalid query")
)

const recentTypes = "anime-serial,anime"

// Upstream is the part of the provider client the service needs.
type Upstream interface {
	List(ctx context.Context, q kodik.Query) (*kodik.Response, error)
	Search(ctx context.Context, q kodik.Query) (*kodik.Response, error)
}

type Page struct {
	Time     string  `json:"time"`
	Total    int     `json:"total"`
	PrevPage *string `json:"prev_page"`
	NextPage *string `json:"next_page"`
	Results  []Item  `json:"results"`
}

type ListParams struct {
	Limit            int    `form:"limit,default=20" json:"limit" binding:"min=1,max=100"`
	Sort             string `form:"sort,default=updated_at" json:"sort" binding:"oneof=updated_at created_at"`
	Order            string `form:"order,default=desc" json:"order" binding:"oneof=asc desc"`
	Types            string `form:"types" json:"types"`
	AnimeKind        string `form:"anime_kind" json:"anime_kind"`
	Year             string `form:"year" json:"year" binding:"omitempty,numeric"`
	TranslationID    string `form:"translation_id" json:"translation_id"`
	Camrip           *bool  `form:"camrip" json:"camrip"`
	Countries        string `form:"countries" json:"countries"`
	WithMaterialData bool   `form:"with_material_data,default=true" json:"with_material_data"`
	WithEpisodesData bool   `form:"with_episodes_data" json:"with_episodes_data"`
	Next             string `form:"next" json:"next"`
}

type SearchParams struct {
	Title     string `form:"title" json:"title"`
	Query     string `form:"query" json:"query"`
	Limit     int    `form:"limit,default=20" json:"limit" binding:"min=1,max=100"`
	Sort      string `form:"sort,default=updated_at" json:"sort" binding:"oneof=updated_at created_at"`
	Order     string `form:"order,default=desc" json:"order" binding:"oneof=asc desc"`
	Types     string `form:"types" json:"types"`
	AnimeKind string `form:"anime_kind" json:"anime_kind"`
}

type RecentParams struct {
	Limit int `form:"limit,default=12" json:"limit" binding:"min=1,max=50"`
}

// validate uses gin's tag name so params bound over HTTP and params built
// by other callers are held to the same rules.
var validate = func() *validator.Validate {
	v := validator.New()
	v.SetTagName("binding")
	return v
}()

func (p *ListParams) normalize() error {
	if p.Limit == 0 {
		p.Limit = 20
	}
	if p.Sort == "" {
		p.Sort = "updated_at"
	}
	if p.Order == "" {
		p.Order = "desc"
	}
	return check(p)
}

func (p *SearchParams) normalize() error {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" {
		p.Title = strings.TrimSpace(p.Query)
	}
	if p.Limit == 0 {
		p.Limit = 20
	}
	if p.Sort == "" {
		p.Sort = "updated_at"
	}
	if p.Order == "" {
		p.Order = "desc"
	}
	if p.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidQuery)
	}
	return check(p)
}

func (p *RecentParams) normalize() error {
	if p.Limit == 0 {
		p.Limit = 12
	}
	return check(p)
}

func check(p any) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return nil
}

type Service struct {
	upstream Upstream
	log      *logrus.Logger
}

func NewService(upstream Upstream, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{upstream: upstream, log: log}
}

func (s *Service) List(ctx context.Context, p ListParams) (*Page, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	resp, err := s.upstream.List(ctx, kodik.Query{
		Limit:            ListWindow.FetchSize(p.Limit),
		Sort:             p.Sort,
		Order:            p.Order,
		Types:            p.Types,
		AnimeKind:        p.AnimeKind,
		Year:             p.Year,
		TranslationID:    p.TranslationID,
		Camrip:           p.Camrip,
		Countries:        p.Countries,
		WithMaterialData: p.WithMaterialData,
		WithEpisodesData: p.WithEpisodesData,
		Next:             p.Next,
	})
	if err != nil {
		return nil, fmt.Errorf("list: %w", err)
	}
	return s.page("list", resp, p.Limit), nil
}

func (s *Service) Search(ctx context.Context, p SearchParams) (*Page, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	resp, err := s.upstream.Search(ctx, kodik.Query{
		Title:            p.Title,
		Limit:            SearchWindow.FetchSize(p.Limit),
		Sort:             p.Sort,
		Order:            p.Order,
		Types:            p.Types,
		AnimeKind:        p.AnimeKind,
		WithMaterialData: true,
	})
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return s.page("search", resp, p.Limit), nil
}

func (s *Service) Recent(ctx context.Context, p RecentParams) (*Page, error) {
	if err := p.normalize(); err != nil {
		return nil, err
	}
	resp, err := s.upstream.List(ctx, kodik.Query{
		Limit:            RecentWindow.FetchSize(p.Limit),
		Sort:             "updated_at",
		Order:            "desc",
		Types:            recentTypes,
		WithMaterialData: true,
	})
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	return s.page("recent", resp, p.Limit), nil
}

// Details looks a row up by provider id, then searches by its title so the
// answer carries every translation of the show, not just the one row.
func (s *Service) Details(ctx context.Context, id string) (*Page, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidQuery)
	}

	byID, err := s.upstream.Search(ctx, kodik.Query{
		ID:               id,
		Limit:            1,
		WithMaterialData: true,
		WithEpisodesData: true,
	})
	if err != nil {
		return nil, fmt.Errorf("details %s: %w", id, err)
	}
	if len(byID.Results) == 0 {
		return nil, ErrNotFound
	}
	base := byID.Results[0]

	item := Group([]kodik.Material{base})[0]
	if base.Title != "" {
		related, err := s.upstream.Search(ctx, kodik.Query{
			Title:            base.Title,
			Limit:            SearchWindow.Cap,
			WithMaterialData: true,
			WithEpisodesData: true,
		})
		if err != nil {
			return nil, fmt.Errorf("details %s: related search: %w", id, err)
		}
		if found, ok := pickGroup(related.Results, base, id); ok {
			item = found
		} else {
			s.log.WithFields(logrus.Fields{"id": id, "title": base.Title}).
				Debug("no related group matched, returning base row")
		}
	}

	return &Page{
		Time:    byID.Time,
		Total:   1,
		Results: []Item{item},
	}, nil
}

// pickGroup returns the group holding the requested id or sharing the
// base row's key.
func pickGroup(rows []kodik.Material, base kodik.Material, id string) (Item, bool) {
	keys := map[string]bool{GroupKey(base): true}
	for _, r := range rows {
		if r.ID == id {
			keys[GroupKey(r)] = true
		}
	}
	for _, it := range Group(rows) {
		if keys[GroupKey(it.Material)] {
			return it, true
		}
	}
	return Item{}, false
}

func (s *Service) Genres() []Genre {
	out := make([]Genre, len(genres))
	copy(out, genres)
	return out
}

func (s *Service) page(endpoint string, resp *kodik.Response, limit int) *Page {
	items := Group(resp.Results)
	metrics.ObserveGrouping(endpoint, len(resp.Results), len(items))
	results, total := Paginate(items, limit)

	s.log.WithFields(logrus.Fields{
		"endpoint": endpoint,
		"raw":      len(resp.Results),
		"grouped":  total,
		"returned": len(results),
	}).Debug("catalog page built")

	return &Page{
		Time:     resp.Time,
		Total:    total,
		PrevPage: resp.PrevPage,
		NextPage: resp.NextPage,
		Results:  results,
	}
}
