package store

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// errUnsupportedScheme is returned for store URLs the factory cannot serve.
var errUnsupportedScheme = errors.New("unsupported store scheme")

// ForURI creates a store from a location URI and a project path.
// The project is appended to the location so every backend resolves object
// names under the same per-project prefix.
//
// Supported schemes:
//   - s3://bucket/prefix?region=...[&endpoint=...] with optional
//     accesskey:secretkey@ userinfo for static credentials
//   - file:///path
func ForURI(uri, project string) (Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("parse store URL: %w", err)
	}

	switch strings.ToLower(u.Scheme) {
	case "s3":
		return s3BackendFor(u, project)
	case "file":
		return NewFileBackend(filepath.Join(u.Path, project)), nil
	default:
		return nil, fmt.Errorf("%q: %w", u.Scheme, errUnsupportedScheme)
	}
}

// s3BackendFor builds an S3 store from a parsed s3:// URL.
// The host is the bucket, the path plus the project is the key prefix, and
// region/endpoint come from query parameters.
func s3BackendFor(u *url.URL, project string) (*S3Backend, error) {
	opts := &S3Options{
		Bucket:   u.Host,
		Prefix:   path.Join(strings.Trim(u.Path, "/"), project),
		Region:   u.Query().Get("region"),
		Endpoint: u.Query().Get("endpoint"),
	}

	if u.User != nil {
		opts.AccessKey = u.User.Username()
		opts.SecretKey, _ = u.User.Password()
	}

	return NewS3Backend(opts)
}
