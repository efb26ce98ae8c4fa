package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gdesouza/repoindex/internal/store"
)

var (
	dbInfo  bool
	dbPathF bool
	dbReset bool
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Store diagnostics",
	RunE: func(cmd *cobra.Command, args []string) error {
		switch {
		case dbReset:
			st, err := store.Reset(dbPath())
			if err != nil {
				return err
			}
			defer st.Close()
			fmt.Printf("reset %s\n", dbPath())
			return nil
		case dbPathF:
			fmt.Println(dbPath())
			return nil
		case dbInfo:
			st, err := openStoreReadOnly()
			if err != nil {
				return err
			}
			defer st.Close()
			info, err := st.Info(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		default:
			return fmt.Errorf("%w: one of --info, --path, --reset is required", ErrUsage)
		}
	},
}

func init() {
	dbCmd.Flags().BoolVar(&dbInfo, "info", false, "print schema version and row counts")
	dbCmd.Flags().BoolVar(&dbPathF, "path", false, "print the resolved store path")
	dbCmd.Flags().BoolVar(&dbReset, "reset", false, "drop and recreate the store at its current path")
}
