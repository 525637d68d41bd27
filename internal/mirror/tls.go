package mirror

import (
	"crypto/tls"
	"crypto/x509"
	"os"

	"github.com/cockroachdb/errors"
)

// TLSConfig holds the TLS client settings applied to every connection
// to the repository server. The zero value uses secure defaults
// (TLS 1.2 minimum, full certificate verification).
type TLSConfig struct {
	MinVersion         string `toml:"min_version,omitempty"`
	MaxVersion         string `toml:"max_version,omitempty"`
	InsecureSkipVerify bool   `toml:"insecure_skip_verify,omitempty"`
	CACertFile         string `toml:"ca_cert_file,omitempty"`
	ClientCertFile     string `toml:"client_cert_file,omitempty"`
	ClientKeyFile      string `toml:"client_key_file,omitempty"`
	ServerName         string `toml:"server_name,omitempty"`
}

// parseTLSVersion maps a config string to a tls.Version constant.
// An empty string returns 0, meaning "not set".
func parseTLSVersion(s string) (uint16, error) {
	switch s {
	case "":
		return 0, nil
	case "1.0":
		return tls.VersionTLS10, nil
	case "1.1":
		return tls.VersionTLS11, nil
	case "1.2":
		return tls.VersionTLS12, nil
	case "1.3":
		return tls.VersionTLS13, nil
	}
	return 0, errors.New("invalid TLS version: " + s)
}

// Validate checks the configuration for inconsistencies.
func (c *TLSConfig) Validate() error {
	minVersion, err := parseTLSVersion(c.MinVersion)
	if err != nil {
		return err
	}
	maxVersion, err := parseTLSVersion(c.MaxVersion)
	if err != nil {
		return err
	}
	if minVersion != 0 && maxVersion != 0 && minVersion > maxVersion {
		return errors.New("min_version cannot be greater than max_version")
	}
	if (c.ClientCertFile == "") != (c.ClientKeyFile == "") {
		return errors.New("both client_cert_file and client_key_file must be specified")
	}
	return nil
}

// BuildTLSConfig converts the configuration into a *tls.Config.
func (c *TLSConfig) BuildTLSConfig() (*tls.Config, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	cfg := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: c.InsecureSkipVerify, // #nosec G402 - explicit opt-in mirroring the server's TLS policy
		ServerName:         c.ServerName,
	}

	if minVersion, _ := parseTLSVersion(c.MinVersion); minVersion != 0 {
		cfg.MinVersion = minVersion
	}
	if maxVersion, _ := parseTLSVersion(c.MaxVersion); maxVersion != 0 {
		cfg.MaxVersion = maxVersion
	}

	if c.CACertFile != "" {
		pem, err := os.ReadFile(c.CACertFile) // #nosec G304 - path comes from the operator's config file
		if err != nil {
			return nil, errors.Wrap(err, "reading ca_cert_file")
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, errors.New("no certificates found in ca_cert_file: " + c.CACertFile)
		}
		cfg.RootCAs = pool
	}

	if c.ClientCertFile != "" {
		cert, err := tls.LoadX509KeyPair(c.ClientCertFile, c.ClientKeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "loading client certificate pair")
		}
		cfg.Certificates = []tls.Certificate{cert}
	}

	return cfg, nil
}
