package nexus

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
)

// serverURL parses a test server address the way the config layer
// would, with a trailing-slash path for relative resolution.
func serverURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u
}

func TestFetchCatalogPagination(t *testing.T) {
	t.Parallel()

	pageByToken := map[string]string{
		"":   `{"items":[{"path":"/a/one.jar","downloadUrl":"http://x/1","fileSize":1,"checksum":{"sha1":"a1"}},{"path":"/a/two.jar","downloadUrl":"http://x/2","fileSize":2,"checksum":{"sha1":"a2"}}],"continuationToken":"t1"}`,
		"t1": `{"items":[{"path":"/b/three.jar","downloadUrl":"http://x/3","fileSize":3,"checksum":{"sha1":"a3"}}],"continuationToken":"t2"}`,
		"t2": `{"items":[{"path":"/c/four.jar","downloadUrl":"http://x/4","fileSize":4,"checksum":{"sha1":"a4"}}],"continuationToken":null}`,
	}

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/service/rest/v1/assets" {
			t.Errorf("unexpected path: %s", r.URL.Path)
			http.NotFound(w, r)
			return
		}
		if repo := r.URL.Query().Get("repository"); repo != "maven-releases" {
			t.Errorf("unexpected repository parameter: %q", repo)
		}
		body, ok := pageByToken[r.URL.Query().Get("continuationToken")]
		if !ok {
			t.Errorf("unexpected continuation token: %q", r.URL.Query().Get("continuationToken"))
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, body)
	}))
	defer server.Close()

	ticks := 0
	catalog, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "maven-releases", nil, 0, func() { ticks++ })
	if err != nil {
		t.Fatal("FetchCatalog failed:", err)
	}

	wantPaths := []string{"/a/one.jar", "/a/two.jar", "/b/three.jar", "/c/four.jar"}
	if len(catalog) != len(wantPaths) {
		t.Fatalf("got %d assets, want %d", len(catalog), len(wantPaths))
	}
	for i, want := range wantPaths {
		if catalog[i].Path() != want {
			t.Errorf("catalog[%d].Path() = %q, want %q (order must be preserved)", i, catalog[i].Path(), want)
		}
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server received %d requests, want 3", got)
	}
	if ticks != 3 {
		t.Errorf("got %d page ticks, want 3", ticks)
	}
}

func TestFetchCatalogMissingTokenTerminates(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		io.WriteString(w, `{"items":[{"path":"/only.jar","downloadUrl":"http://x/1","fileSize":1,"checksum":{"sha1":"aa"}}]}`)
	}))
	defer server.Close()

	catalog, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", nil, 0, nil)
	if err != nil {
		t.Fatal("FetchCatalog failed:", err)
	}
	if len(catalog) != 1 {
		t.Errorf("got %d assets, want 1 (page ingested exactly once)", len(catalog))
	}
	if got := requests.Load(); got != 1 {
		t.Errorf("server received %d requests, want 1", got)
	}
}

func TestFetchCatalogEmptyRepository(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"items":[],"continuationToken":null}`)
	}))
	defer server.Close()

	catalog, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", nil, 0, nil)
	if err != nil {
		t.Fatal("FetchCatalog failed:", err)
	}
	if len(catalog) != 0 {
		t.Errorf("got %d assets, want 0", len(catalog))
	}
}

func TestFetchCatalogMalformedResponse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "<html>definitely not JSON</html>")
	}))
	defer server.Close()

	_, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "maven-releases", nil, 0, nil)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("want ErrProtocol, got %v", err)
	}
	// The message must name the server and repository for diagnosis.
	if !strings.Contains(err.Error(), server.URL) {
		t.Errorf("error should mention the server URL: %v", err)
	}
	if !strings.Contains(err.Error(), "maven-releases") {
		t.Errorf("error should mention the repository: %v", err)
	}
}

func TestFetchCatalogMissingItems(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `{"continuationToken":null}`)
	}))
	defer server.Close()

	_, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", nil, 0, nil)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("want ErrProtocol, got %v", err)
	}
}

func TestFetchCatalogErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", nil, 0, nil)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("want ErrProtocol, got %v", err)
	}
}

func TestFetchCatalogNetworkFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	target := serverURL(t, server.URL)
	server.Close()

	_, err := FetchCatalog(context.Background(), &http.Client{}, target, "repo", nil, 0, nil)
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("want ErrNetwork, got %v", err)
	}
}

func TestFetchCatalogBasicAuth(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "alice" || pass != "s3cret" {
			t.Errorf("missing or wrong basic auth: %q %q %v", user, pass, ok)
		}
		io.WriteString(w, `{"items":[],"continuationToken":null}`)
	}))
	defer server.Close()

	creds := &Credentials{Username: "alice", Password: "s3cret"}
	if _, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", creds, 0, nil); err != nil {
		t.Fatal("FetchCatalog failed:", err)
	}
}

func TestFetchCatalogPageCeiling(t *testing.T) {
	t.Parallel()

	var requests atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		requests.Add(1)
		// a misbehaving cursor chain that never terminates
		io.WriteString(w, `{"items":[],"continuationToken":"again"}`)
	}))
	defer server.Close()

	_, err := FetchCatalog(context.Background(), server.Client(), serverURL(t, server.URL), "repo", nil, 3, nil)
	if !errors.Is(err, ErrProtocol) {
		t.Fatalf("want ErrProtocol, got %v", err)
	}
	if got := requests.Load(); got != 3 {
		t.Errorf("server received %d requests, want 3", got)
	}
}
