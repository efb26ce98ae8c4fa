package cmd

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show a dashboard summary of the index",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		info, err := st.Info(cmd.Context())
		if err != nil {
			return err
		}

		repos, err := st.AllRepos(cmd.Context())
		if err != nil {
			return err
		}

		var dirty, noUpstream int
		languages := map[string]int{}
		for _, r := range repos {
			if !r.IsClean {
				dirty++
			}
			if !r.HasUpstream {
				noUpstream++
			}
			if r.Language != "" {
				languages[r.Language]++
			}
		}

		fmt.Printf("store: %s (schema v%d, %d bytes)\n", info.Path, info.SchemaVersion, info.SizeBytes)
		fmt.Printf("repositories: %d (dirty=%d, no-upstream=%d)\n", info.RepoCount, dirty, noUpstream)
		fmt.Printf("events: %d   tags: %d   publications: %d\n", info.EventCount, info.TagCount, info.PublicationCount)

		printLanguageTable(languages)
		return nil
	},
}

func printLanguageTable(languages map[string]int) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Language", "Repositories"})
	for lang, count := range languages {
		t.AppendRow(table.Row{lang, count})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
