package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jimingkang/mini-pg/engine"
	"github.com/peterh/liner"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

const minipgHistory = ".minipg_history"

func init() {
	minipgCmd.AddCommand(&cobra.Command{
		Use:   "shell",
		Short: "Run an interactive session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(func(e *engine.Engine) error {
				return interact(newSession(e, os.Stdout))
			})
		},
	})
}

// lineReader reads statements
type lineReader interface {
	Prompt(prompt string) (string, error)
}

func interact(s *session) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	if f, err := os.Open(minipgHistory); err == nil {
		line.ReadHistory(f)
		f.Close()
	}

	err := repl(s, &historyReader{line: line})

	if f, ferr := os.Create(minipgHistory); ferr != nil {
		fmt.Fprintf(os.Stderr, "minipg: error writing history file, %s: %s\n", minipgHistory, ferr)
	} else {
		line.WriteHistory(f)
		f.Close()
	}
	return err
}

// historyReader appends the lines to history
type historyReader struct {
	line *liner.State
}

func (hr *historyReader) Prompt(prompt string) (string, error) {
	s, err := hr.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	hr.line.AppendHistory(s)
	return s, nil
}

// repl executes the statements until quit or end of input.
// the open transaction is aborted at the end
func repl(s *session, lr lineReader) error {
	defer s.close()
	for {
		prompt := "minipg> "
		if s.xid.IsValid() {
			prompt = fmt.Sprintf("minipg[%d]> ", s.xid)
		}
		text, err := lr.Prompt(prompt)
		if err == io.EOF || errors.Is(err, liner.ErrPromptAborted) {
			fmt.Fprintln(s.w)
			return nil
		}
		if err != nil {
			return err
		}
		quit, err := s.exec(text)
		if err != nil {
			fail(s.w, err)
		}
		if quit {
			return nil
		}
	}
}
