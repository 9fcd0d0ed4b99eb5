package kodik

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, Token: "tok", Timeout: 2 * time.Second}, quietLogger())
}

func TestListSendsQueryAndDecodes(t *testing.T) {
	var gotPath string
	var gotQuery map[string][]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"time":"3ms","total":2,"prev_page":null,
			"next_page":"https://kodikapi.com/list?token=tok&next=abc",
			"results":[
				{"id":"serial-1","title":"Naruto","year":2002,"link":"//k/1","translation":{"id":610,"title":"AniLibria","type":"voice"}},
				{"id":"serial-2","title":"Naruto","year":2002,"link":"//k/2","translation":null}
			]}`)
	})

	yes := true
	resp, err := c.List(context.Background(), Query{Limit: 60, Sort: "updated_at", Order: "desc", Camrip: &yes, WithMaterialData: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if gotPath != "/list" {
		t.Errorf("path = %q", gotPath)
	}
	for key, want := range map[string]string{"token": "tok", "limit": "60", "sort": "updated_at", "camrip": "true", "with_material_data": "true"} {
		if got := gotQuery[key]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s = %v, want %q", key, got, want)
		}
	}
	if _, ok := gotQuery["title"]; ok {
		t.Error("unset title should not be sent")
	}
	if resp.Total != 2 || len(resp.Results) != 2 {
		t.Fatalf("total=%d results=%d", resp.Total, len(resp.Results))
	}
	if resp.Results[0].Translation == nil || resp.Results[0].Translation.ID != 610 {
		t.Errorf("translation not decoded: %+v", resp.Results[0].Translation)
	}
	if resp.Results[1].Translation != nil {
		t.Error("null translation should stay nil")
	}
	if resp.NextPage == nil || strings.Contains(*resp.NextPage, "token") || !strings.Contains(*resp.NextPage, "next=abc") {
		t.Errorf("next_page = %v", resp.NextPage)
	}
	if resp.PrevPage != nil {
		t.Errorf("prev_page = %v", *resp.PrevPage)
	}
}

func TestSearchSkipsBadRows(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = io.WriteString(w, `{"time":"1ms","total":2,"results":[{"id":"a","title":"A","year":"not-a-number"},{"id":"b","title":"B"}]}`)
	})
	resp, err := c.Search(context.Background(), Query{Title: "b"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID != "b" {
		t.Fatalf("results = %+v", resp.Results)
	}
}

func TestNon2xxIsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad token", http.StatusForbidden)
	})
	_, err := c.List(context.Background(), Query{})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
	var ue *UpstreamError
	if !errors.As(err, &ue) || ue.Status != http.StatusForbidden || ue.Endpoint != "list" {
		t.Fatalf("err = %#v", err)
	}
}

func TestTransportErrorIsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, Token: "tok", Timeout: time.Second}, quietLogger())
	_, err := c.Search(context.Background(), Query{ID: "x"})
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want ErrUpstream", err)
	}
}

func TestMalformedEnvelopeIsUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})
	if _, err := c.List(context.Background(), Query{}); !errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v", err)
	}
}

func TestQueryValuesOmitsZero(t *testing.T) {
	v := Query{}.Values("tok")
	if len(v) != 1 || v.Get("token") != "tok" {
		t.Fatalf("values = %v", v)
	}
}

func TestStripTokenKeepsRestOfLink(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"https://kodikapi.com/list?token=tok&next=abc", "https://kodikapi.com/list?next=abc"},
		{"https://kodikapi.com/list?next=abc&token=tok&limit=60", "https://kodikapi.com/list?next=abc&limit=60"},
		{"https://kodikapi.com/list?token=tok", "https://kodikapi.com/list"},
		{"https://kodikapi.com/list?next=abc", "https://kodikapi.com/list?next=abc"},
		// a bad escape makes url.Parse fail; the cursor must survive
		{"https://kodikapi.com/list?token=tok&next=a%zzb", "https://kodikapi.com/list?next=a%zzb"},
		{"https://kodikapi.com/list?next=abc&token=tok#top", "https://kodikapi.com/list?next=abc#top"},
	}
	for _, tt := range tests {
		in := tt.in
		got := stripToken(&in)
		if got == nil || *got != tt.want {
			t.Errorf("stripToken(%q) = %v, want %q", tt.in, got, tt.want)
		}
	}
	if stripToken(nil) != nil {
		t.Error("nil link should stay nil")
	}
}

func TestCancelledContextIsNotUpstreamError(t *testing.T) {
	block := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	})
	t.Cleanup(func() { close(block) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err := c.List(ctx, Query{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want context.Canceled only", err)
	}
}

func TestRateLimitWaitHonoursCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"time":"1ms","total":0,"results":[]}`)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(Config{BaseURL: srv.URL, Token: "tok", Timeout: time.Second, RatePerSecond: 0.01, Burst: 1}, quietLogger())

	if _, err := c.List(context.Background(), Query{}); err != nil {
		t.Fatalf("first call: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.List(ctx, Query{})
	if !errors.Is(err, context.Canceled) || errors.Is(err, ErrUpstream) {
		t.Fatalf("err = %v, want context.Canceled only", err)
	}
}
