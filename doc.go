/*
Package nexusmirror is a tool for bulk-mirroring Nexus 3 repository assets.

nexusmirror walks the repository manager's paginated asset listing,
downloads every asset into a local tree that reproduces the repository's
path layout, and verifies each download against the server-declared
SHA-1 digest. Features include:
  - Cursor-based catalog discovery over the Nexus REST API
  - Per-asset integrity verification with bounded retry
  - Incremental mirror mode that skips size-matching local files
  - Concurrent downloads with connection pooling
  - TLS certificate validation

The main packages are:

	github.com/nexusmirror/nexusmirror/internal/nexus   - Nexus REST asset listing and checksum handling
	github.com/nexusmirror/nexusmirror/internal/mirror  - Core mirroring logic and download pipeline
	github.com/nexusmirror/nexusmirror/cmd/nexusmirror  - Command-line interface
*/
package nexusmirror
