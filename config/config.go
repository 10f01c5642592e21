/*
Configuration of mini-pg.

The configuration is read from a hcl file (minipg.hcl by default) like below.
Every variable can also be set with the command line flag of the same name
(underscores replaced with dashes), and the flag wins over the file.

	data_dir           = "data"
	buffer_frames      = 64
	max_transactions   = 10
	wal_file           = "pg_wal.log"
	sync_commit        = true
	checkpoint_workers = 4
	log_level          = "info"
	log_file           = "minipg.log"
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
)

// DefaultFile is the default config file name
const DefaultFile = "minipg.hcl"

// Config is configuration of the engine
type Config struct {
	// DataDir is the directory of table files, meta files, state file and wal
	DataDir string
	// BufferFrames is the number of page cache frames
	BufferFrames int
	// MaxTransactions is the number of transaction slots
	MaxTransactions int
	// WALFile is the name of wal file in DataDir
	WALFile string
	// SyncCommit syncs wal commit record before commit returns
	SyncCommit bool
	// CheckpointWorkers is the number of goroutines writing dirty pages
	CheckpointWorkers int
	LogLevel          string
	LogFile           string
}

// Default returns configuration with default values
func Default() Config {
	return Config{
		DataDir:           "data",
		BufferFrames:      64,
		MaxTransactions:   10,
		WALFile:           "pg_wal.log",
		SyncCommit:        true,
		CheckpointWorkers: 4,
		LogLevel:          "info",
		LogFile:           "minipg.log",
	}
}

// names of config variables
var names = []string{
	"data_dir",
	"buffer_frames",
	"max_transactions",
	"wal_file",
	"sync_commit",
	"checkpoint_workers",
	"log_level",
	"log_file",
}

// FlagName returns the command line flag name of the config variable
func FlagName(name string) string {
	return strings.ReplaceAll(name, "_", "-")
}

// AddFlags registers the config variables as flags
func (c *Config) AddFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.DataDir, FlagName("data_dir"), c.DataDir, "`directory` of data files")
	fs.IntVar(&c.BufferFrames, FlagName("buffer_frames"), c.BufferFrames, "number of page cache frames")
	fs.IntVar(&c.MaxTransactions, FlagName("max_transactions"), c.MaxTransactions, "number of concurrent transactions")
	fs.StringVar(&c.WALFile, FlagName("wal_file"), c.WALFile, "`file` name of wal in data directory")
	fs.BoolVar(&c.SyncCommit, FlagName("sync_commit"), c.SyncCommit, "sync wal on commit")
	fs.IntVar(&c.CheckpointWorkers, FlagName("checkpoint_workers"), c.CheckpointWorkers, "number of checkpoint writers")
	fs.StringVar(&c.LogLevel, FlagName("log_level"), c.LogLevel,
		"log level: trace, debug, info, warn, error, fatal, or panic")
	fs.StringVar(&c.LogFile, FlagName("log_file"), c.LogFile, "`file` to use for logging")
}

// Set sets the config variable from the string
func (c *Config) Set(name, value string) error {
	var err error
	switch name {
	case "data_dir":
		c.DataDir = value
	case "buffer_frames":
		c.BufferFrames, err = strconv.Atoi(value)
	case "max_transactions":
		c.MaxTransactions, err = strconv.Atoi(value)
	case "wal_file":
		c.WALFile = value
	case "sync_commit":
		c.SyncCommit, err = strconv.ParseBool(value)
	case "checkpoint_workers":
		c.CheckpointWorkers, err = strconv.Atoi(value)
	case "log_level":
		c.LogLevel = value
	case "log_file":
		c.LogFile = value
	default:
		return errors.Errorf("%s is not a config variable", name)
	}
	if err != nil {
		return errors.Wrapf(err, "%s", name)
	}
	return nil
}

// Decode sets the variables found in hcl source.
// the variable for which skip returns true is left as it is (set by command line flag)
func (c *Config) Decode(src string, skip func(name string) bool) error {
	var vars map[string]interface{}
	if err := hcl.Decode(&vars, src); err != nil {
		return errors.Wrap(err, "hcl.Decode failed")
	}
	for name, val := range vars {
		if skip != nil && skip(name) {
			continue
		}
		switch val.(type) {
		case string, bool, int, int64, float64:
		default:
			// lists and blocks are decoded into slices
			return errors.Errorf("%s must be a string, number or bool", name)
		}
		if err := c.Set(name, fmt.Sprintf("%v", val)); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the config file
func (c *Config) Load(path string, skip func(name string) bool) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read config file")
	}
	if err := c.Decode(string(b), skip); err != nil {
		return errors.Wrap(err, path)
	}
	log.WithField("file", path).Debug("config loaded")
	return nil
}

// Validate checks the values
func (c Config) Validate() error {
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.BufferFrames <= 0 {
		return errors.Errorf("buffer_frames must be positive: %d", c.BufferFrames)
	}
	if c.MaxTransactions <= 0 {
		return errors.Errorf("max_transactions must be positive: %d", c.MaxTransactions)
	}
	if c.WALFile == "" || filepath.Base(c.WALFile) != c.WALFile {
		return errors.Errorf("wal_file must be a file name: %q", c.WALFile)
	}
	if c.CheckpointWorkers <= 0 {
		return errors.Errorf("checkpoint_workers must be positive: %d", c.CheckpointWorkers)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	return nil
}

// WALPath returns the path of wal file
func (c Config) WALPath() string {
	return filepath.Join(c.DataDir, c.WALFile)
}

// Names returns the names of config variables
func Names() []string {
	return append([]string(nil), names...)
}
