package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/gdesouza/repoindex/internal/querylang"
	"github.com/gdesouza/repoindex/internal/store"
)

var (
	queryLimit int
	queryOrder string
)

var queryCmd = &cobra.Command{
	Use:   "query EXPR",
	Short: "Compile and execute a DSL expression against the index",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		views, err := viewPredicates()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrUsage, err)
		}

		compiler := querylang.New(views)
		expr := args[0]
		if queryOrder != "" {
			expr = fmt.Sprintf("%s order by %s", expr, queryOrder)
		}
		if queryLimit > 0 {
			expr = fmt.Sprintf("%s limit %d", expr, queryLimit)
		}

		compiled, err := compiler.Compile(expr)
		if err != nil {
			if _, ok := err.(*querylang.QueryCompileError); ok {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			return err
		}

		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		repos, err := st.Query(cmd.Context(), compiled.SQL, compiled.Params)
		if err != nil {
			return err
		}
		printRepoTable(repos)
		return nil
	},
}

func init() {
	queryCmd.Flags().IntVar(&queryLimit, "limit", 0, "maximum rows to return")
	queryCmd.Flags().StringVar(&queryOrder, "order", "", "order-by clause, e.g. 'updated_at desc'")
}

func printRepoTable(repos []*store.Repository) {
	isTTY := term.IsTerminal(int(os.Stdout.Fd()))

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Name", "Language", "Branch", "Clean", "Owner", "License"})
	for _, r := range repos {
		clean := "clean"
		if !r.IsClean {
			clean = "dirty"
		}
		t.AppendRow(table.Row{r.Name, r.Language, r.Branch, clean, r.Owner, r.LicenseKey})
	}
	if isTTY {
		t.SetStyle(table.StyleRounded)
	}
	t.Render()
}
