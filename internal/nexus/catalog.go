package nexus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

// Sentinel errors classifying catalog-stage failures. Errors returned
// by FetchCatalog are marked with exactly one of these; use errors.Is
// to classify.
var (
	// ErrNetwork marks transport-level failures (connection refused,
	// timeout, DNS).
	ErrNetwork = errors.New("network failure")
	// ErrProtocol marks malformed or unexpected listing responses.
	ErrProtocol = errors.New("unexpected server response")
)

// assetListPath is the Nexus REST endpoint for paginated asset listings,
// relative to the server root.
const assetListPath = "service/rest/v1/assets"

// catalogPage is one paginated listing response. A null or absent
// continuationToken decodes to "" and signals the final page.
type catalogPage struct {
	Items             []Asset `json:"items"`
	ContinuationToken string  `json:"continuationToken"`
}

// FetchCatalog walks the paginated asset listing of repo on server and
// returns all asset descriptors in server order, without deduplication.
//
// server must have a trailing-slash path so relative resolution works
// (the config layer guarantees this). pageTick, if non-nil, is invoked
// once per fetched page. maxPages caps the cursor walk; 0 means the
// server is trusted to terminate the chain.
//
// Listing failures are never retried: a partial catalog would cause
// silent data loss in mirror mode.
func FetchCatalog(ctx context.Context, client *http.Client, server *url.URL, repo string, creds *Credentials, maxPages int, pageTick func()) ([]Asset, error) {
	listURL := server.ResolveReference(&url.URL{
		Path:     assetListPath,
		RawQuery: url.Values{"repository": {repo}}.Encode(),
	})

	var catalog []Asset
	token := ""
	for page := 0; ; page++ {
		if maxPages > 0 && page >= maxPages {
			return nil, errors.Mark(
				errors.Newf("asset listing for repository %q on %s did not terminate within %d pages", repo, server, maxPages),
				ErrProtocol)
		}

		pageURL := *listURL
		if token != "" {
			q := pageURL.Query()
			q.Set("continuationToken", token)
			pageURL.RawQuery = q.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
		if err != nil {
			return nil, errors.Wrap(err, "building listing request")
		}
		if creds != nil {
			req.SetBasicAuth(creds.Username, creds.Password)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.Mark(
				errors.Wrapf(err, "fetching asset listing from %s", server),
				ErrNetwork)
		}

		body, err := decodePage(resp)
		if err != nil {
			return nil, errors.Mark(
				errors.Wrapf(err, "asset listing from %s for repository %q", server, repo),
				ErrProtocol)
		}

		catalog = append(catalog, body.Items...)
		if pageTick != nil {
			pageTick()
		}

		if body.ContinuationToken == "" {
			return catalog, nil
		}
		token = body.ContinuationToken
	}
}

// decodePage validates and decodes one listing response.
func decodePage(resp *http.Response) (*catalogPage, error) {
	defer closeBody(resp)

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf("status %d", resp.StatusCode)
	}

	var page catalogPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Wrap(err, "cannot decode JSON response; check the server URL and repository name")
	}
	if page.Items == nil {
		return nil, errors.New(`response lacks the required "items" array`)
	}
	return &page, nil
}

// closeBody closes an HTTP response body.
func closeBody(resp *http.Response) {
	if err := resp.Body.Close(); err != nil {
		slog.Warn("failed to close response body", "error", err)
	}
}
