package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gdesouza/repoindex/internal/exportpkg"
	"github.com/gdesouza/repoindex/internal/querylang"
	"github.com/gdesouza/repoindex/internal/store"
)

var exportIncludeEvents bool

var exportCmd = &cobra.Command{
	Use:   "export DIR [EXPR]",
	Short: "Snapshot the store into a self-describing ECHO export directory",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		var repos []*store.Repository
		if len(args) == 2 {
			views, err := viewPredicates()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			compiled, err := querylang.New(views).Compile(args[1])
			if err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			repos, err = st.Query(cmd.Context(), compiled.SQL, compiled.Params)
			if err != nil {
				return err
			}
		} else {
			repos, err = st.AllRepos(cmd.Context())
			if err != nil {
				return err
			}
		}

		var evts []*store.EventWithRepo
		if exportIncludeEvents {
			evts, err = st.EventsSinceJoined(cmd.Context(), store.EventFilter{})
			if err != nil {
				return err
			}
		}

		manifest, err := exportpkg.Export(dir, exportpkg.Options{
			IncludeEvents: exportIncludeEvents,
			Repos:         repos,
			Events:        evts,
			SourceDBPath:  st.Path(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("exported %d repositories to %s (echo format %s)\n", manifest.Stats.TotalRepos, dir, manifest.EchoVersion)
		return nil
	},
}

func init() {
	exportCmd.Flags().BoolVar(&exportIncludeEvents, "include-events", false, "also export events.jsonl")
}
