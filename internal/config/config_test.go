package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "file", c.Models.Source)
	assert.Equal(t, "models", c.Models.Dir)
	assert.Equal(t, "auto", c.Models.Variant)
	assert.True(t, c.Normalize.Aliases)
	assert.Equal(t, 5, c.Report.PreviewRows)
	assert.Equal(t, ":8080", c.Server.Addr)
	assert.Equal(t, "*", c.Server.CORSOrigins)
	assert.Equal(t, 32, c.Server.MaxUploadMB)
}

func TestLoadFileAndEnv(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "wqguard.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
models:
  dir: /srv/models
  variant: joint
report:
  preview_rows: 10
server:
  addr: ":9000"
`), 0o644))
	t.Setenv("WQGUARD_SERVER_ADDR", ":9100")
	t.Setenv("WQGUARD_NORMALIZE_ALIASES", "false")

	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/models", c.Models.Dir)
	assert.Equal(t, "joint", c.Models.Variant)
	assert.Equal(t, 10, c.Report.PreviewRows)
	assert.Equal(t, ":9100", c.Server.Addr)
	assert.False(t, c.Normalize.Aliases)
}

func TestLoadExplicitMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			Models: Models{Source: "file", Dir: "models", Variant: "auto"},
			Report: Report{PreviewRows: 5},
			Server: Server{Addr: ":8080", MaxUploadMB: 32},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"empty variant means auto", func(c *Config) { c.Models.Variant = "" }, ""},
		{"unknown source", func(c *Config) { c.Models.Source = "ftp" }, "invalid models.source"},
		{"file without dir", func(c *Config) { c.Models.Dir = "" }, "models.dir"},
		{"s3 without bucket", func(c *Config) {
			c.Models.Source = "s3"
			c.Models.S3.Endpoint = "localhost:9000"
		}, "models.s3.endpoint"},
		{"s3 complete", func(c *Config) {
			c.Models.Source = "s3"
			c.Models.S3 = S3{Endpoint: "localhost:9000", Bucket: "models"}
		}, ""},
		{"unknown variant", func(c *Config) { c.Models.Variant = "ensemble" }, "ensemble"},
		{"negative preview", func(c *Config) { c.Report.PreviewRows = -1 }, "preview_rows"},
		{"zero upload limit", func(c *Config) { c.Server.MaxUploadMB = 0 }, "max_upload_mb"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	chdir(t, t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "wqguard.yaml")

	in := &Config{
		Models:    Models{Source: "file", Dir: "/data/models", Variant: "per_parameter"},
		Normalize: Normalize{Aliases: false},
		Report:    Report{PreviewRows: 3},
		Server:    Server{Addr: ":8181", CORSOrigins: "http://localhost:3000", MaxUploadMB: 8},
	}
	require.NoError(t, Save(in, path))

	out, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, in.Models.Dir, out.Models.Dir)
	assert.Equal(t, in.Models.Variant, out.Models.Variant)
	assert.False(t, out.Normalize.Aliases)
	assert.Equal(t, in.Server, out.Server)
}

// chdir mirrors testing.T.Chdir (Go 1.24+) for older toolchains.
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { require.NoError(t, os.Chdir(prev)) })
}
