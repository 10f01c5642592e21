package cli

import (
	"os"
	"path/filepath"

	"github.com/jimingkang/mini-pg/wal"
	"github.com/spf13/cobra"
)

var walFile string

func init() {
	walCmd := &cobra.Command{
		Use:   "wal",
		Short: "Print the records of the write-ahead log",
		Long:  "Print the valid records of the write-ahead log. the log is read without opening the engine.",
		Args:  cobra.NoArgs,
		RunE:  walRun,
	}
	walCmd.Flags().StringVar(&walFile, "file", "", "`path` of wal file (default is wal_file in data directory)")
	minipgCmd.AddCommand(walCmd)
}

func walRun(cmd *cobra.Command, args []string) error {
	path := walFile
	if path == "" {
		path = filepath.Join(cfg.DataDir, cfg.WALFile)
	}
	recs, err := wal.ReadFile(path)
	// the records before the torn tail are still printed
	printRecords(os.Stdout, recs)
	return err
}
