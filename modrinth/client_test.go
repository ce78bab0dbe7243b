package modrinth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"sync/atomic"
	"testing"

	"modstacker/collection"
	"modstacker/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(config.Config{UserAgent: "modstacker-test/1.0", MinecraftLoader: "fabric", SearchLimit: 10})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.BaseURL = srv.URL
	return c
}

func TestNewClientRequiresUserAgent(t *testing.T) {
	if _, err := NewClient(config.Config{}); err == nil {
		t.Fatal("expected error without user agent")
	}
}

func TestFetchVersionSupportUnion(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/project/sodium/version" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("loaders"); got != `["fabric"]` {
			t.Errorf("loaders = %q", got)
		}
		if ua := r.Header.Get("User-Agent"); ua != "modstacker-test/1.0" {
			t.Errorf("User-Agent = %q", ua)
		}
		w.Write([]byte(`[
			{"id":"a","game_versions":["1.21.1","1.21.2"]},
			{"id":"b","game_versions":["1.21.2","1.21.3"]}
		]`))
	})

	got, err := c.FetchVersionSupport(context.Background(), "sodium", []string{"1.21.1", "1.21.3", "1.21.4"})
	if err != nil {
		t.Fatalf("FetchVersionSupport: %v", err)
	}
	want := map[string]bool{"1.21.1": true, "1.21.3": true, "1.21.4": false}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestFetchVersionSupportMissingParams(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	})
	if _, err := c.FetchVersionSupport(context.Background(), "", []string{"1.21.1"}); !errors.Is(err, ErrMissingParams) {
		t.Errorf("expected ErrMissingParams, got %v", err)
	}
	if _, err := c.FetchVersionSupport(context.Background(), "sodium", nil); !errors.Is(err, ErrMissingParams) {
		t.Errorf("expected ErrMissingParams, got %v", err)
	}
	if calls != 0 {
		t.Errorf("no request expected, got %d", calls)
	}
}

func TestFetchProjectMetadataDefaults(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/project/lithium":
			w.Write([]byte(`{"slug":"lithium","title":"Lithium","icon_url":"https://cdn/l.png","client_side":"optional","server_side":""}`))
		default:
			http.NotFound(w, r)
		}
	})

	meta, err := c.FetchProjectMetadata(context.Background(), "lithium")
	if err != nil {
		t.Fatalf("FetchProjectMetadata: %v", err)
	}
	want := collection.SideMetadata{ClientSide: collection.SideOptional, ServerSide: collection.SideRequired, IconURL: "https://cdn/l.png", Title: "Lithium"}
	if meta != want {
		t.Errorf("got %+v, want %+v", meta, want)
	}

	_, err = c.FetchProjectMetadata(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("expected HTTPError 404, got %v", err)
	}
}

func TestSearchMods(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "sodium" || q.Get("limit") != "10" || q.Get("facets") != `[["categories:fabric"]]` {
			t.Errorf("unexpected query %v", q)
		}
		w.Write([]byte(`{"hits":[
			{"slug":"sodium","title":"Sodium","description":"fast","client_side":"required","server_side":"unsupported"},
			{"slug":"sodium-extra","title":"Sodium Extra"}
		],"total_hits":2}`))
	})

	results, err := c.SearchMods(context.Background(), "  sodium ")
	if err != nil {
		t.Fatalf("SearchMods: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].ServerSide != collection.SideUnsupported {
		t.Errorf("server side = %s", results[0].ServerSide)
	}
	if results[1].ClientSide != collection.SideRequired || results[1].ServerSide != collection.SideRequired {
		t.Errorf("missing sides should default to required, got %+v", results[1])
	}
}

func TestGetVersionByHash(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/version_file/abc123") || r.URL.Query().Get("algorithm") != "sha1" {
			t.Errorf("unexpected request %s", r.URL.String())
		}
		w.Write([]byte(`{"id":"v1","project_id":"AANobbMI","game_versions":["1.21.1"]}`))
	})
	v, err := c.GetVersionByHash(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("GetVersionByHash: %v", err)
	}
	if v.ProjectID != "AANobbMI" {
		t.Errorf("ProjectID = %s", v.ProjectID)
	}
}

func TestBreakerTripsOnServerErrors(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		if _, err := c.GetProject(context.Background(), "sodium"); err == nil {
			t.Fatal("expected error")
		}
	}
	if c.BreakerState() != "open" {
		t.Fatalf("breaker should be open after 5 failures")
	}
	_, err := c.GetProject(context.Background(), "sodium")
	if !errors.Is(err, ErrRegistryUnavailable) {
		t.Errorf("expected ErrRegistryUnavailable, got %v", err)
	}
	if calls != 5 {
		t.Errorf("open breaker must not reach the server, calls = %d", calls)
	}
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	for i := 0; i < 8; i++ {
		c.GetProject(context.Background(), "gone")
	}
	if c.BreakerState() != "closed" {
		t.Error("404s must not trip the breaker")
	}
}
