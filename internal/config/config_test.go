package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TUD-CERT/docleaner/internal/config"
)

func writeFixture(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "docleaner.ini")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeFixture(t, `
[docleaner]
podman_uri = unix:///run/podman/podman.sock
contact = security@example.org

[plugins.pdf]
containerized.image = docleaner-pdf:latest
`)
	require.NoError(t, config.Load(path))
	assert.Equal(t, "unix:///run/podman/podman.sock", config.Keys.PodmanURI)
	assert.Equal(t, "security@example.org", config.Keys.Contact)
	require.Len(t, config.Keys.Plugins, 1)
	assert.Equal(t, "pdf", config.Keys.Plugins[0].Name)
	assert.Equal(t, "docleaner-pdf:latest", config.Keys.Plugins[0].ContainerizedImage)
}

func TestLoadMissingPodmanURIFails(t *testing.T) {
	path := writeFixture(t, `
[plugins.pdf]
containerized.image = docleaner-pdf:latest
`)
	assert.Error(t, config.Load(path))
}

func TestLoadNoPluginsFails(t *testing.T) {
	path := writeFixture(t, `
[docleaner]
podman_uri = unix:///run/podman/podman.sock
`)
	assert.Error(t, config.Load(path))
}

func TestLoadDefaultsToFSBlobBackend(t *testing.T) {
	path := writeFixture(t, `
[docleaner]
podman_uri = unix:///run/podman/podman.sock

[plugins.pdf]
containerized.image = docleaner-pdf:latest
`)
	require.NoError(t, config.Load(path))
	assert.Equal(t, "fs", config.Keys.BlobBackend)
}

func TestLoadS3BlobBackendRequiresBucket(t *testing.T) {
	path := writeFixture(t, `
[docleaner]
podman_uri = unix:///run/podman/podman.sock
blob_backend = s3

[plugins.pdf]
containerized.image = docleaner-pdf:latest
`)
	assert.Error(t, config.Load(path))
}

func TestLoadS3BlobBackendReadsBucketSection(t *testing.T) {
	path := writeFixture(t, `
[docleaner]
podman_uri = unix:///run/podman/podman.sock
blob_backend = s3

[blobstore.s3]
bucket = docleaner-payloads
region = eu-central-1
path_style = true

[plugins.pdf]
containerized.image = docleaner-pdf:latest
`)
	require.NoError(t, config.Load(path))
	assert.Equal(t, "s3", config.Keys.BlobBackend)
	assert.Equal(t, "docleaner-payloads", config.Keys.S3.Bucket)
	assert.Equal(t, "eu-central-1", config.Keys.S3.Region)
	assert.True(t, config.Keys.S3.UsePathStyle)
}

func TestLoadMissingFile(t *testing.T) {
	assert.Error(t, config.Load(filepath.Join(t.TempDir(), "does-not-exist.ini")))
}

func TestInitRequiresEnvVar(t *testing.T) {
	t.Setenv(config.EnvVar, "")
	assert.Error(t, config.Init())
}
