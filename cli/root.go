// Package cli is the command line interface of mini-pg.
// The layout of the commands and the handling of config file, flags and logging follow maho.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jimingkang/mini-pg/config"
	"github.com/jimingkang/mini-pg/engine"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	minipgCmd = &cobra.Command{
		Use:               "minipg",
		Short:             "A small relational storage engine",
		Long:              "mini-pg is a single node storage engine with slotted heap pages, MVCC and wal.",
		SilenceUsage:      true,
		PersistentPreRunE: minipgPreRun,
		PersistentPostRun: minipgPostRun,
	}

	logStderr = false
	logWriter io.WriteCloser

	configFile = config.DefaultFile
	noConfig   = false

	cfg       = config.Default()
	usedFlags = map[string]struct{}{}
)

func init() {
	log.SetFormatter(&log.TextFormatter{
		DisableLevelTruncation: true,
	})

	fs := minipgCmd.PersistentFlags()
	cfg.AddFlags(fs)
	fs.BoolVarP(&logStderr, "log-stderr", "s", logStderr, "log to standard error")
	fs.StringVar(&configFile, "config-file", configFile, "`file` to load config from")
	fs.BoolVar(&noConfig, "no-config", noConfig, "don't load config file")
}

// Execute runs the command
func Execute() error {
	return minipgCmd.Execute()
}

func minipgPreRun(cmd *cobra.Command, args []string) error {
	cmd.Flags().Visit(
		func(flg *pflag.Flag) {
			usedFlags[flg.Name] = struct{}{}
		})

	if configFile != "" && !noConfig {
		err := loadConfig()
		if err != nil {
			return errors.Wrap(err, "minipg")
		}
	}

	if !logStderr && cfg.LogFile != "" {
		var err error
		logWriter, err = os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0666)
		if err != nil {
			logWriter = nil
			return errors.Wrap(err, "minipg")
		}
		log.SetOutput(logWriter)
	}

	ll, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return errors.Wrap(err, "minipg")
	}
	log.SetLevel(ll)

	log.WithFields(log.Fields{
		"pid":     os.Getpid(),
		"command": cmd.Name(),
	}).Info("minipg starting")
	return nil
}

func minipgPostRun(cmd *cobra.Command, args []string) {
	log.WithField("pid", os.Getpid()).Info("minipg done")

	if logWriter != nil {
		logWriter.Close()
	}
}

// loadConfig loads the config file. the variables given as flags are not overwritten.
// missing default config file is not an error
func loadConfig() error {
	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if _, ok := usedFlags["config-file"]; !ok {
			return nil
		}
	}
	return cfg.Load(configFile, func(name string) bool {
		_, ok := usedFlags[config.FlagName(name)]
		return ok
	})
}

// withEngine opens the engine, runs fn and closes the engine
func withEngine(fn func(e *engine.Engine) error) error {
	e, err := engine.Open(cfg)
	if err != nil {
		return err
	}
	err = fn(e)
	if cerr := e.Close(); err == nil {
		err = cerr
	}
	return err
}

func fail(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %s\n", err)
}
