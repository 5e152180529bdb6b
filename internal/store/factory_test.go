package store

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestForURI_File dispatches file:// URLs to the file backend with the
// project appended.
func TestForURI_File(t *testing.T) {
	t.Parallel()

	s, err := ForURI("file:///var/srv/releases", "edge-fleet")
	require.NoError(t, err)

	fb, ok := s.(*FileBackend)
	require.True(t, ok)
	require.Equal(t, "/var/srv/releases/edge-fleet", fb.dir)
}

// TestForURI_S3 dispatches s3:// URLs to the S3 backend, composing bucket,
// prefix and connection parameters. No network traffic happens here: the
// session is created lazily against the endpoint.
func TestForURI_S3(t *testing.T) {
	t.Parallel()

	s, err := ForURI("s3://releases/ota?region=eu-west-1&endpoint=http://127.0.0.1:9000", "edge-fleet")
	require.NoError(t, err)

	sb, ok := s.(*S3Backend)
	require.True(t, ok)
	require.Equal(t, "releases", sb.bucket)
	require.Equal(t, "ota/edge-fleet", sb.prefix)
	require.Equal(t, "ota/edge-fleet/version.yaml", sb.objectKey("version.yaml"))
}

// TestForURI_UnsupportedScheme rejects anything but s3 and file.
func TestForURI_UnsupportedScheme(t *testing.T) {
	t.Parallel()

	_, err := ForURI("ftp://releases/ota", "edge-fleet")
	require.ErrorIs(t, err, errUnsupportedScheme)
}
