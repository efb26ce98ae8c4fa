package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/gdesouza/repoindex/internal/config"
	"github.com/gdesouza/repoindex/internal/store"
	"github.com/gdesouza/repoindex/internal/view"
)

// ErrUsage marks a CLI-argument error, mapped to exit code 2 by main —
// distinct from a store or query failure, which maps to exit code 1.
var ErrUsage = errors.New("repoindex: usage error")

var (
	cfg *config.Config
	log zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "repoindex",
	Short: "A collection-aware metadata index for local git repositories",
	Long: `repoindex discovers git working copies under configured roots, enriches
them with license, language, citation, and optional remote metadata, and
exposes the result through a query DSL, a persistent event log, and an
ECHO-format export.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("%w: load config: %v", ErrUsage, err)
		}
		cfg = loaded
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
		return nil
	},
}

// Execute runs the CLI and returns its error for main to map to an exit code.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(sqlCmd)
}

// openStore opens the configured store for read/write use.
func openStore() (*store.Store, error) {
	return store.Open(dbPath())
}

// openStoreReadOnly opens the configured store read-only, for commands
// that must never mutate it (sql, by default).
func openStoreReadOnly() (*store.Store, error) {
	return store.OpenReadOnly(dbPath())
}

func dbPath() string {
	if cfg != nil && cfg.Database.Path != "" {
		return cfg.Database.Path
	}
	return store.DefaultPath()
}

func viewPredicates() (map[string]string, error) {
	if cfg == nil || len(cfg.Views) == 0 {
		return nil, nil
	}
	set := make(view.Set, len(cfg.Views))
	for name, v := range cfg.Views {
		set[name] = view.View{Name: name, Predicate: v.Predicate, Composed: v.Composed, Paths: v.Paths}
	}
	return set.Predicates()
}
