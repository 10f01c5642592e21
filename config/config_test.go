package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		skip    func(string) bool
		want    func(c *Config)
		wantErr bool
	}{
		{
			name: "empty",
			src:  "",
			want: func(c *Config) {},
		},
		{
			name: "all types",
			src: `
data_dir = "/tmp/minipg"
buffer_frames = 128
sync_commit = false
log_level = "debug"
`,
			want: func(c *Config) {
				c.DataDir = "/tmp/minipg"
				c.BufferFrames = 128
				c.SyncCommit = false
				c.LogLevel = "debug"
			},
		},
		{
			name: "skipped variable is not changed",
			src: `
data_dir = "/tmp/minipg"
max_transactions = 3
`,
			skip: func(name string) bool { return name == "data_dir" },
			want: func(c *Config) {
				c.MaxTransactions = 3
			},
		},
		{
			name:    "unknown variable",
			src:     `page_size = 8192`,
			wantErr: true,
		},
		{
			name:    "wrong type",
			src:     `buffer_frames = "many"`,
			wantErr: true,
		},
		{
			name:    "unterminated string",
			src:     `data_dir = "x`,
			wantErr: true,
		},
		{
			name:    "unterminated object",
			src:     `data_dir = {`,
			wantErr: true,
		},
		{
			name:    "list value",
			src:     `data_dir = ["a", "b"]`,
			wantErr: true,
		},
		{
			name:    "block value",
			src:     "data_dir {\n  path = \"a\"\n}",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			err := c.Decode(tt.src, tt.skip)
			if tt.wantErr {
				assert.NotNil(t, err)
				return
			}
			require.Nil(t, err)
			want := Default()
			tt.want(&want)
			assert.Equal(t, want, c)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFile)
	require.Nil(t, os.WriteFile(path, []byte(`checkpoint_workers = 2`), 0644))

	c := Default()
	require.Nil(t, c.Load(path, nil))
	assert.Equal(t, 2, c.CheckpointWorkers)

	err := c.Load(filepath.Join(t.TempDir(), "missing.hcl"), nil)
	assert.NotNil(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{
			name:   "default",
			modify: func(c *Config) {},
		},
		{
			name:    "no frames",
			modify:  func(c *Config) { c.BufferFrames = 0 },
			wantErr: true,
		},
		{
			name:    "no transactions",
			modify:  func(c *Config) { c.MaxTransactions = -1 },
			wantErr: true,
		},
		{
			name:    "wal file in other directory",
			modify:  func(c *Config) { c.WALFile = "../wal.log" },
			wantErr: true,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.LogLevel = "verbose" },
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(&c)
			err := c.Validate()
			if tt.wantErr {
				assert.NotNil(t, err)
			} else {
				assert.Nil(t, err)
			}
		})
	}
}

func TestAddFlags(t *testing.T) {
	c := Default()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	c.AddFlags(fs)

	require.Nil(t, fs.Parse([]string{"--data-dir", "/srv/minipg", "--buffer-frames=16"}))
	assert.Equal(t, "/srv/minipg", c.DataDir)
	assert.Equal(t, 16, c.BufferFrames)

	// every config variable has its flag
	for _, name := range Names() {
		assert.NotNil(t, fs.Lookup(FlagName(name)), name)
	}
}
