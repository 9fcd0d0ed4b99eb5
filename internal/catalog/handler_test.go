package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"

	"github.com/TETRIX8/anime/internal/kodik"
)

func newTestRouter(up Upstream) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := newTestService(up)
	r := gin.New()
	NewHandler(svc, svc.log).RegisterRoutes(r.Group("/api/anime"))
	return r
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	return w
}

func TestHandlerValidationIs422(t *testing.T) {
	up := &fakeUpstream{}
	r := newTestRouter(up)

	for _, target := range []string{
		"/api/anime/list?limit=0",
		"/api/anime/list?limit=abc",
		"/api/anime/list?sort=rating",
		"/api/anime/search",
		"/api/anime/search?title=%20%20",
		"/api/anime/recent?limit=51",
	} {
		if w := get(r, target); w.Code != http.StatusUnprocessableEntity {
			t.Errorf("%s: code = %d body=%s", target, w.Code, w.Body.String())
		}
	}
	if len(up.lists)+len(up.searches) != 0 {
		t.Fatal("invalid requests reached upstream")
	}
}

func TestHandlerListDefaults(t *testing.T) {
	up := &fakeUpstream{listFn: func(kodik.Query) (*kodik.Response, error) {
		return &kodik.Response{Time: "1ms", Results: []kodik.Material{
			row("1", "A", intp(2000), 1, "//a/1"),
			row("2", "A", intp(2000), 2, "//a/2"),
		}}, nil
	}}
	r := newTestRouter(up)

	w := get(r, "/api/anime/list")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
	}
	q := up.lists[0]
	if q.Limit != 60 || !q.WithMaterialData {
		t.Errorf("query = %+v", q)
	}

	var page struct {
		Total   int `json:"total"`
		Results []struct {
			ID               string            `json:"id"`
			Link             string            `json:"link"`
			TranslationLinks map[string]string `json:"translation_links"`
		} `json:"results"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &page); err != nil {
		t.Fatal(err)
	}
	if page.Total != 1 || len(page.Results) != 1 || len(page.Results[0].TranslationLinks) != 2 {
		t.Fatalf("page = %+v", page)
	}
}

func TestHandlerUpstreamFailureIs500(t *testing.T) {
	up := &fakeUpstream{searchFn: func(kodik.Query) (*kodik.Response, error) {
		return nil, &kodik.UpstreamError{Endpoint: "search", Status: 503}
	}}
	w := get(newTestRouter(up), "/api/anime/search?query=naruto")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Fatalf("body = %s", w.Body.String())
	}
}

func TestHandlerDetailsNotFound(t *testing.T) {
	if w := get(newTestRouter(&fakeUpstream{}), "/api/anime/serial-404"); w.Code != http.StatusNotFound {
		t.Fatalf("code = %d", w.Code)
	}
}

func TestHandlerGenresRouteBeatsID(t *testing.T) {
	w := get(newTestRouter(&fakeUpstream{}), "/api/anime/genres")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"genres"`) {
		t.Fatalf("code = %d body=%s", w.Code, w.Body.String())
	}
}

func TestHandlerContextErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{context.Canceled, statusClientClosed},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
	}
	for _, tt := range tests {
		err := tt.err
		up := &fakeUpstream{listFn: func(kodik.Query) (*kodik.Response, error) { return nil, err }}
		if w := get(newTestRouter(up), "/api/anime/list"); w.Code != tt.want {
			t.Errorf("%v: code = %d, want %d", tt.err, w.Code, tt.want)
		}
	}
}
