package confluence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

func TestBuildRootsCQL(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		roots []string
		since time.Time
		want  string
	}{
		{
			name:  "single root no time",
			roots: []string{"100"},
			want:  "(id in (100) OR ancestor in (100))",
		},
		{
			name:  "multiple roots no time",
			roots: []string{"100", "200"},
			want:  "(id in (100,200) OR ancestor in (100,200))",
		},
		{
			name:  "with modified-since",
			roots: []string{"100"},
			since: time.Date(2026, 8, 1, 10, 30, 45, 0, time.UTC),
			want:  `(id in (100) OR ancestor in (100)) AND lastModified >= "2026-08-01 10:30"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BuildRootsCQL(tt.roots, tt.since)
			if got != tt.want {
				t.Errorf("BuildRootsCQL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestTestConnection(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "unauthorized", status: 401, wantErr: apperrors.ErrAuthFailed},
		{name: "forbidden", status: 403, wantErr: apperrors.ErrAuthFailed},
		{name: "not found", status: 404, wantErr: apperrors.ErrEndpointNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "u", "t")
			err := client.TestConnection(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("TestConnection error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestTestConnection_Success(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/user/current" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if _, _, ok := r.BasicAuth(); !ok {
			t.Error("missing basic auth")
		}
		fmt.Fprint(w, `{"displayName":"Test User"}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	if err := client.TestConnection(context.Background()); err != nil {
		t.Errorf("TestConnection: %v", err)
	}
}

func TestTestConnection_MalformedURL(t *testing.T) {
	t.Parallel()

	client := NewClient("not a url", "u", "t")
	err := client.TestConnection(context.Background())
	if !errors.Is(err, apperrors.ErrMalformedBaseURL) {
		t.Errorf("error = %v, want ErrMalformedBaseURL", err)
	}
}

func TestFetchPage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/12345" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("expand"); got != expandParams {
			t.Errorf("expand = %q, want %q", got, expandParams)
		}
		fmt.Fprint(w, `{
			"id": "12345",
			"title": "My Page",
			"version": {"number": 7},
			"body": {"storage": {"value": "<p>hi</p>"}},
			"ancestors": [{"id": "100", "title": "Root"}],
			"children": {"attachment": {"size": 2}}
		}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	page, err := client.FetchPage(context.Background(), "12345")
	if err != nil {
		t.Fatalf("FetchPage: %v", err)
	}

	if page.Title != "My Page" || page.Version.Number != 7 {
		t.Errorf("page = %+v", page)
	}
	if page.StorageValue() != "<p>hi</p>" {
		t.Errorf("StorageValue = %q", page.StorageValue())
	}
	if hint, known := page.AttachmentHint(); !known || hint != 2 {
		t.Errorf("AttachmentHint = %d, %v", hint, known)
	}
}

func searchHandler(t *testing.T, total int) http.HandlerFunc {
	t.Helper()

	return func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		var result SearchResult
		for i := start; i < total && i < start+limit; i++ {
			result.Results = append(result.Results, Page{
				ID:    strconv.Itoa(i),
				Title: fmt.Sprintf("Page %d", i),
			})
		}
		result.Start = start
		result.Limit = limit
		result.Size = len(result.Results)
		result.TotalSize = total

		if err := json.NewEncoder(w).Encode(&result); err != nil {
			t.Errorf("encode: %v", err)
		}
	}
}

func TestFetchAllByRoots_SinglePage(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(searchHandler(t, 3))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	pages, err := client.FetchAllByRoots(context.Background(), []string{"100"}, time.Time{})
	if err != nil {
		t.Fatalf("FetchAllByRoots: %v", err)
	}
	if len(pages) != 3 {
		t.Errorf("len = %d, want 3", len(pages))
	}
}

func TestFetchAllByRoots_Paginates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(searchHandler(t, 72))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	pages, err := client.FetchAllByRoots(context.Background(), []string{"100"}, time.Time{})
	if err != nil {
		t.Fatalf("FetchAllByRoots: %v", err)
	}

	if len(pages) != 72 {
		t.Errorf("len = %d, want 72", len(pages))
	}
	// Order must follow the remote listing.
	if pages[0].ID != "0" || pages[71].ID != "71" {
		t.Errorf("bounds = %s..%s", pages[0].ID, pages[71].ID)
	}
}

func TestFetchAllByRoots_CeilingBoundsResult(t *testing.T) {
	t.Parallel()

	// A server that ignores the limit parameter must still be bounded
	// by the hard ceiling, with no overshoot in the returned slice.
	const perCall = 300
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start, _ := strconv.Atoi(r.URL.Query().Get("start"))

		var result SearchResult
		for i := start; i < start+perCall; i++ {
			result.Results = append(result.Results, Page{ID: strconv.Itoa(i)})
		}
		result.Start = start
		result.Size = perCall
		result.TotalSize = 100000

		if err := json.NewEncoder(w).Encode(&result); err != nil {
			t.Errorf("encode: %v", err)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	pages, err := client.FetchAllByRoots(context.Background(), []string{"100"}, time.Time{})
	if err != nil {
		t.Fatalf("FetchAllByRoots: %v", err)
	}

	if len(pages) != 1000 {
		t.Errorf("len = %d, want 1000", len(pages))
	}
}

func TestFetchAllByRoots_SendsCQL(t *testing.T) {
	t.Parallel()

	var gotCQL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCQL = r.URL.Query().Get("cql")
		fmt.Fprint(w, `{"results": [], "totalSize": 0}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	since := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if _, err := client.FetchAllByRoots(context.Background(), []string{"100", "200"}, since); err != nil {
		t.Fatalf("FetchAllByRoots: %v", err)
	}

	want := `(id in (100,200) OR ancestor in (100,200)) AND lastModified >= "2026-08-01 09:00"`
	if gotCQL != want {
		t.Errorf("cql = %q, want %q", gotCQL, want)
	}
}

func TestListAttachments(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/content/42/child/attachment" {
			t.Errorf("path = %q", r.URL.Path)
		}
		fmt.Fprint(w, `{"results": [
			{"id": "a1", "title": "img.png", "_links": {"download": "/download/a1"}},
			{"id": "a2", "title": "doc.pdf", "_links": {"download": "/download/a2"}}
		]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	atts, err := client.ListAttachments(context.Background(), "42")
	if err != nil {
		t.Fatalf("ListAttachments: %v", err)
	}
	if len(atts) != 2 || atts[0].Title != "img.png" {
		t.Errorf("attachments = %+v", atts)
	}
}

func TestDownloadAttachment(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/download/a1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_, _ = w.Write([]byte("binarydata"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "u", "t")
	att := &Attachment{ID: "a1", Title: "img.png", Links: Links{Download: "/download/a1"}}

	data, err := client.DownloadAttachment(context.Background(), att)
	if err != nil {
		t.Fatalf("DownloadAttachment: %v", err)
	}
	if string(data) != "binarydata" {
		t.Errorf("data = %q", data)
	}
}

func TestDownloadAttachment_NoLink(t *testing.T) {
	t.Parallel()

	client := NewClient("https://example", "u", "t")
	if _, err := client.DownloadAttachment(context.Background(), &Attachment{Title: "x"}); err == nil {
		t.Error("expected error without download link")
	}
}

func TestPageURL(t *testing.T) {
	t.Parallel()

	client := NewClient("https://example.atlassian.net/wiki", "u", "t")

	withLink := &Page{ID: "1", Links: Links{WebUI: "/spaces/X/pages/1"}}
	if got := client.PageURL(withLink); got != "https://example.atlassian.net/wiki/spaces/X/pages/1" {
		t.Errorf("PageURL = %q", got)
	}

	withoutLink := &Page{ID: "2"}
	want := "https://example.atlassian.net/wiki/pages/viewpage.action?pageId=2"
	if got := client.PageURL(withoutLink); got != want {
		t.Errorf("PageURL = %q, want %q", got, want)
	}
}
