package cli

import (
	"os"
	"strings"

	"github.com/jimingkang/mini-pg/engine"
	"github.com/spf13/cobra"
)

func init() {
	minipgCmd.AddCommand(
		&cobra.Command{
			Use:     "create-table table column:type...",
			Short:   "Create a table",
			Example: "  minipg create-table users id:int name:text age:int",
			Args:    cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.createTable(args[0], args[1:])
				})
			},
		},
		&cobra.Command{
			Use:     "insert table values",
			Short:   "Insert a row",
			Example: "  minipg insert users \"1, 'Tom', 20\"",
			Args:    cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.insert(args[0], strings.Join(args[1:], " "))
				})
			},
		},
		&cobra.Command{
			Use:     "select table [predicate]",
			Short:   "Print the visible rows of a table",
			Example: "  minipg select users \"age > 20 AND name <> 'Tom'\"",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.selectRows(args[0], strings.Join(args[1:], " "))
				})
			},
		},
		&cobra.Command{
			Use:     "update table assignments [predicate]",
			Short:   "Update the rows matching the predicate",
			Example: "  minipg update users \"age = age + 1\" \"name = 'Tom'\"",
			Args:    cobra.RangeArgs(2, 3),
			RunE: func(cmd *cobra.Command, args []string) error {
				where := ""
				if len(args) == 3 {
					where = args[2]
				}
				return withSession(func(s *session) error {
					return s.update(args[0], args[1], where)
				})
			},
		},
		&cobra.Command{
			Use:     "delete table [predicate]",
			Short:   "Delete the rows matching the predicate",
			Example: "  minipg delete users \"id = 1\"",
			Args:    cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.delete(args[0], strings.Join(args[1:], " "))
				})
			},
		},
		&cobra.Command{
			Use:   "checkpoint",
			Short: "Write all dirty pages and a checkpoint record",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.checkpoint()
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Print tables, transactions, page cache and metrics",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return withSession(func(s *session) error {
					return s.status()
				})
			},
		})
}

// withSession runs fn with the session on new engine. every statement runs in its own transaction
func withSession(fn func(s *session) error) error {
	return withEngine(func(e *engine.Engine) error {
		return fn(newSession(e, os.Stdout))
	})
}
