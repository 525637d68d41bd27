package nexus

import (
	"crypto/sha1" // #nosec G505 - SHA-1 is the digest the Nexus asset API declares
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Credentials is an optional HTTP Basic Auth pair. It is supplied by
// the CLI layer; this package never reads the process environment.
type Credentials struct {
	Username string
	Password string
}

// Asset describes one downloadable file exposed by the repository
// manager's REST listing. Immutable once decoded.
type Asset struct {
	path        string
	downloadURL string
	size        int64
	sha1sum     string
}

// MakeAsset constructs an Asset from its listing fields.
func MakeAsset(path, downloadURL string, size int64, sha1sum string) Asset {
	return Asset{
		path:        path,
		downloadURL: downloadURL,
		size:        size,
		sha1sum:     strings.ToLower(sha1sum),
	}
}

// Path returns the repository-relative location of the asset.
// It may carry a leading separator; see LocalPath.
func (a *Asset) Path() string {
	return a.path
}

// DownloadURL returns the absolute URL serving the raw asset bytes.
func (a *Asset) DownloadURL() string {
	return a.downloadURL
}

// Size returns the expected byte length reported by the listing.
func (a *Asset) Size() int64 {
	return a.size
}

// SHA1 returns the server-declared digest in lowercase hex.
func (a *Asset) SHA1() string {
	return a.sha1sum
}

// LocalPath joins the asset's repository-relative path onto root,
// stripping any leading separator so the result stays under root.
func (a *Asset) LocalPath(root string) string {
	rel := strings.TrimLeft(a.path, "/")
	return filepath.Join(root, filepath.FromSlash(rel))
}

// MatchesSHA1 compares a hex digest against the server-declared value,
// ignoring case.
func (a *Asset) MatchesSHA1(digest string) bool {
	return strings.EqualFold(a.sha1sum, digest)
}

type assetJSON struct {
	Path        string `json:"path"`
	DownloadURL string `json:"downloadUrl"`
	FileSize    int64  `json:"fileSize"`
	Checksum    struct {
		SHA1 string `json:"sha1"`
	} `json:"checksum"`
}

// UnmarshalJSON implements json.Unmarshaler for the wire format of the
// Nexus assets API.
func (a *Asset) UnmarshalJSON(data []byte) error {
	var aj assetJSON
	if err := json.Unmarshal(data, &aj); err != nil {
		return err
	}
	if aj.FileSize < 0 {
		return errors.Newf("negative file size %d for %s", aj.FileSize, aj.Path)
	}
	a.path = aj.Path
	a.downloadURL = aj.DownloadURL
	a.size = aj.FileSize
	a.sha1sum = strings.ToLower(aj.Checksum.SHA1)
	return nil
}

// SHA1File reads the whole file at path and returns its SHA-1 digest
// in lowercase hex. The digest is always recomputed; the file may have
// just been rewritten.
func SHA1File(path string) (string, error) {
	f, err := os.Open(path) // #nosec G304 - path is derived from the configured output root
	if err != nil {
		return "", err
	}
	defer func() {
		_ = f.Close()
	}()

	h := sha1.New() // #nosec G401 - SHA-1 is the digest the Nexus asset API declares
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, "SHA1File: "+path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
