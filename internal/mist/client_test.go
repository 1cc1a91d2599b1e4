package mist

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mistops/org-clone-workbench/internal/models"
)

func testClient(url string) *Client {
	return NewClient(&models.Connection{
		Name:    "test",
		BaseURL: url,
		Token:   "secret-token",
	}, zerolog.Nop())
}

func TestAuthHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Get(context.Background(), "/self"); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if gotAuth != "Token secret-token" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Token secret-token")
	}
}

func TestRetryOnTransientFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`{"id":"ok"}`))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Post(context.Background(), "/orgs", models.Resource{"name": "x"})
	if err != nil {
		t.Fatalf("Post() error = %v", err)
	}
	if res.ID() != "ok" {
		t.Errorf("Post() id = %q, want %q", res.ID(), "ok")
	}
	if n := atomic.LoadInt32(&calls); n != 3 {
		t.Errorf("request count = %d, want 3", n)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail":"not found"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Get(context.Background(), "/orgs/missing")
	if err == nil {
		t.Fatal("expected error")
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("request count = %d, want 1 (4xx must not retry)", n)
	}
	want := `GET /orgs/missing: HTTP 404: {"detail":"not found"}`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestErrorBodyTruncated(t *testing.T) {
	long := strings.Repeat("x", 500)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(long))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Get(context.Background(), "/x")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.HasSuffix(err.Error(), "...") {
		t.Errorf("long body not truncated: %q", err.Error())
	}
	if len(err.Error()) > 250 {
		t.Errorf("error too long: %d chars", len(err.Error()))
	}
}

func TestPaginate(t *testing.T) {
	// Two full pages then a short one
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		if r.URL.Query().Get("limit") != "1000" {
			t.Errorf("limit = %q, want 1000", r.URL.Query().Get("limit"))
		}
		n := pageLimit
		if page == "3" {
			n = 2
		}
		items := make([]models.Resource, n)
		for i := range items {
			items[i] = models.Resource{"id": fmt.Sprintf("p%s-%d", page, i)}
		}
		json.NewEncoder(w).Encode(items)
	}))
	defer srv.Close()

	items, err := testClient(srv.URL).Paginate(context.Background(), "/orgs/o/sites")
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(items) != 2*pageLimit+2 {
		t.Errorf("Paginate() len = %d, want %d", len(items), 2*pageLimit+2)
	}
}

func TestPaginateNonListResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"single","enabled":true}`))
	}))
	defer srv.Close()

	items, err := testClient(srv.URL).Paginate(context.Background(), "/orgs/o/setting")
	if err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if len(items) != 1 || items[0].ID() != "single" {
		t.Errorf("Paginate() = %v, want single-element slice", items)
	}
}

func TestPaginateQuerySeparator(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	if _, err := testClient(srv.URL).Paginate(context.Background(), "/x?type=wlan"); err != nil {
		t.Fatalf("Paginate() error = %v", err)
	}
	if !strings.HasPrefix(gotQuery, "type=wlan&page=1") {
		t.Errorf("query = %q, want existing params preserved", gotQuery)
	}
}

func TestUploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("ParseMultipartForm() error = %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("FormFile() error = %v", err)
		}
		defer file.Close()
		if header.Filename != "floor1.png" {
			t.Errorf("filename = %q, want floor1.png", header.Filename)
		}
		content, _ := io.ReadAll(file)
		if string(content) != "png-bytes" {
			t.Errorf("content = %q", content)
		}
		if r.Header.Get("Authorization") != "Token secret-token" {
			t.Error("missing auth header on upload")
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	err := testClient(srv.URL).UploadFile(context.Background(),
		"/sites/s/maps/m/image", "floor1.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("UploadFile() error = %v", err)
	}
}

func TestDownloadNoAuthHeader(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("signed URL download must not carry the API token")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("img"))
	}))
	defer srv.Close()

	content, contentType, err := testClient("http://unused.invalid").Download(context.Background(), srv.URL+"/asset?sig=abc")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	if string(content) != "img" || contentType != "image/png" {
		t.Errorf("Download() = %q, %q", content, contentType)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("0123456789abc", 10); got != "0123456789..." {
		t.Errorf("truncate() = %q", got)
	}
}
