package catalog

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/TETRIX8/anime/internal/kodik"
)

type fakeUpstream struct {
	listFn   func(kodik.Query) (*kodik.Response, error)
	searchFn func(kodik.Query) (*kodik.Response, error)
	lists    []kodik.Query
	searches []kodik.Query
}

func (f *fakeUpstream) List(_ context.Context, q kodik.Query) (*kodik.Response, error) {
	f.lists = append(f.lists, q)
	if f.listFn == nil {
		return &kodik.Response{}, nil
	}
	return f.listFn(q)
}

func (f *fakeUpstream) Search(_ context.Context, q kodik.Query) (*kodik.Response, error) {
	f.searches = append(f.searches, q)
	if f.searchFn == nil {
		return &kodik.Response{}, nil
	}
	return f.searchFn(q)
}

func newTestService(up Upstream) *Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewService(up, log)
}

func TestListOverFetchesAndGroups(t *testing.T) {
	next := "https://kodikapi.com/list?next=xyz"
	up := &fakeUpstream{listFn: func(q kodik.Query) (*kodik.Response, error) {
		return &kodik.Response{
			Time:     "2ms",
			Total:    500,
			NextPage: &next,
			Results: []kodik.Material{
				row("1", "A", intp(2000), 1, "//a/1"),
				row("2", "A", intp(2000), 2, "//a/2"),
				row("3", "B", intp(2000), 1, "//b/1"),
				row("4", "C", intp(2000), 1, "//c/1"),
			},
		}, nil
	}}
	svc := newTestService(up)

	page, err := svc.List(context.Background(), ListParams{Limit: 2, Types: "anime"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(up.lists) != 1 {
		t.Fatalf("upstream calls = %d", len(up.lists))
	}
	q := up.lists[0]
	if q.Limit != 6 || q.Sort != "updated_at" || q.Order != "desc" || q.Types != "anime" {
		t.Errorf("query = %+v", q)
	}
	if page.Total != 3 || len(page.Results) != 2 {
		t.Fatalf("total=%d results=%d", page.Total, len(page.Results))
	}
	if page.NextPage == nil || *page.NextPage != next || page.Time != "2ms" {
		t.Errorf("envelope not passed through: %+v", page)
	}
}

func TestListRejectsBadParamsWithoutCallingUpstream(t *testing.T) {
	up := &fakeUpstream{}
	svc := newTestService(up)

	cases := []ListParams{
		{Limit: 101},
		{Limit: -1},
		{Sort: "title"},
		{Order: "sideways"},
		{Year: "twenty"},
	}
	for _, p := range cases {
		if _, err := svc.List(context.Background(), p); !errors.Is(err, ErrInvalidQuery) {
			t.Errorf("%+v: err = %v, want ErrInvalidQuery", p, err)
		}
	}
	if len(up.lists) != 0 {
		t.Fatalf("upstream called %d times", len(up.lists))
	}
}

func TestSearchTitleAndQueryAlias(t *testing.T) {
	up := &fakeUpstream{}
	svc := newTestService(up)

	if _, err := svc.Search(context.Background(), SearchParams{Query: "  Naruto "}); err != nil {
		t.Fatalf("Search: %v", err)
	}
	if got := up.searches[0]; got.Title != "Naruto" || got.Limit != 60 || !got.WithMaterialData {
		t.Errorf("query = %+v", got)
	}

	if _, err := svc.Search(context.Background(), SearchParams{Title: "   "}); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("blank title: err = %v", err)
	}
	if len(up.searches) != 1 {
		t.Fatalf("blank title reached upstream")
	}
}

func TestRecentUsesFixedQuery(t *testing.T) {
	up := &fakeUpstream{}
	svc := newTestService(up)

	if _, err := svc.Recent(context.Background(), RecentParams{}); err != nil {
		t.Fatalf("Recent: %v", err)
	}
	q := up.lists[0]
	if q.Limit != 24 || q.Types != "anime-serial,anime" || q.Sort != "updated_at" || q.Order != "desc" || !q.WithMaterialData {
		t.Errorf("query = %+v", q)
	}
	if _, err := svc.Recent(context.Background(), RecentParams{Limit: 51}); !errors.Is(err, ErrInvalidQuery) {
		t.Errorf("limit 51: err = %v", err)
	}
}

func TestUpstreamFailurePropagates(t *testing.T) {
	boom := &kodik.UpstreamError{Endpoint: "list", Status: 502}
	up := &fakeUpstream{listFn: func(kodik.Query) (*kodik.Response, error) { return nil, boom }}
	svc := newTestService(up)

	page, err := svc.List(context.Background(), ListParams{})
	if !errors.Is(err, kodik.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
	if page != nil {
		t.Fatal("no page should be built on failure")
	}
}

func TestDetailsReturnsWholeGroup(t *testing.T) {
	up := &fakeUpstream{searchFn: func(q kodik.Query) (*kodik.Response, error) {
		if q.ID == "serial-2" {
			return &kodik.Response{Time: "1ms", Results: []kodik.Material{row("serial-2", "Frieren", intp(2023), 609, "//f/609")}}, nil
		}
		return &kodik.Response{Results: []kodik.Material{
			row("serial-9", "Frieren Movie", intp(2024), 610, "//fm/610"),
			row("serial-1", "Frieren", intp(2023), 610, "//f/610"),
			row("serial-2", "Frieren", intp(2023), 609, "//f/609"),
		}}, nil
	}}
	svc := newTestService(up)

	page, err := svc.Details(context.Background(), "serial-2")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	if len(up.searches) != 2 || up.searches[1].Title != "Frieren" {
		t.Fatalf("searches = %+v", up.searches)
	}
	if page.Total != 1 || len(page.Results) != 1 {
		t.Fatalf("page = %+v", page)
	}
	it := page.Results[0]
	if it.Title != "Frieren" || len(it.Translations) != 2 {
		t.Fatalf("item = %s with %d translations", it.Title, len(it.Translations))
	}
}

func TestDetailsFallsBackToBaseRow(t *testing.T) {
	up := &fakeUpstream{searchFn: func(q kodik.Query) (*kodik.Response, error) {
		if q.ID != "" {
			return &kodik.Response{Results: []kodik.Material{row("lonely", "Rare OVA", nil, 77, "//r/77")}}, nil
		}
		return &kodik.Response{Results: []kodik.Material{row("other", "Rare OVA 2", intp(2001), 1, "//r2")}}, nil
	}}
	svc := newTestService(up)

	page, err := svc.Details(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("Details: %v", err)
	}
	it := page.Results[0]
	if it.ID != "lonely" || len(it.Translations) != 1 || it.TranslationLinks["77"] != "//r/77" {
		t.Fatalf("fallback item = %+v", it)
	}
}

func TestDetailsNotFound(t *testing.T) {
	svc := newTestService(&fakeUpstream{})
	if _, err := svc.Details(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDetailsFollowUpFailureIsUpstreamError(t *testing.T) {
	up := &fakeUpstream{searchFn: func(q kodik.Query) (*kodik.Response, error) {
		if q.ID != "" {
			return &kodik.Response{Results: []kodik.Material{row("id1", "T", nil, 1, "")}}, nil
		}
		return nil, &kodik.UpstreamError{Endpoint: "search", Status: 500}
	}}
	svc := newTestService(up)
	if _, err := svc.Details(context.Background(), "id1"); !errors.Is(err, kodik.ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
}

func TestGenresIsCopy(t *testing.T) {
	svc := newTestService(&fakeUpstream{})
	g := svc.Genres()
	if len(g) == 0 {
		t.Fatal("no genres")
	}
	g[0].Name = "changed"
	if svc.Genres()[0].Name == "changed" {
		t.Fatal("Genres leaks package state")
	}
}
