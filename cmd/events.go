package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdesouza/repoindex/internal/store"
)

var (
	eventsType  string
	eventsSince string
	eventsUntil string
	eventsRepo  string
	eventsLimit int
	eventsStats bool
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read events from the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := store.EventFilter{Repo: eventsRepo, Limit: eventsLimit}
		if eventsType != "" {
			filter.Types = strings.Split(eventsType, ",")
		}
		if eventsSince != "" {
			d, err := time.ParseDuration(eventsSince)
			if err != nil {
				return fmt.Errorf("%w: --since %q: %v", ErrUsage, eventsSince, err)
			}
			filter.Since = time.Now().Add(-d)
		}
		if eventsUntil != "" {
			d, err := time.ParseDuration(eventsUntil)
			if err != nil {
				return fmt.Errorf("%w: --until %q: %v", ErrUsage, eventsUntil, err)
			}
			filter.Until = time.Now().Add(-d)
		}

		st, err := openStoreReadOnly()
		if err != nil {
			return err
		}
		defer st.Close()

		found, err := st.EventsSinceJoined(cmd.Context(), filter)
		if err != nil {
			return err
		}

		if eventsStats {
			return printEventStats(found)
		}

		enc := json.NewEncoder(os.Stdout)
		for _, e := range found {
			if err := enc.Encode(e.ToRecord()); err != nil {
				return err
			}
		}
		return nil
	},
}

func printEventStats(events []*store.EventWithRepo) error {
	byType := map[string]int{}
	for _, e := range events {
		byType[e.Type]++
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(byType)
}

func init() {
	eventsCmd.Flags().StringVar(&eventsType, "type", "", "comma-separated event types to include")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events within this duration of now, e.g. 168h")
	eventsCmd.Flags().StringVar(&eventsUntil, "until", "", "exclude events newer than this duration ago")
	eventsCmd.Flags().StringVar(&eventsRepo, "repo", "", "restrict to one repository by name")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 0, "maximum events to return")
	eventsCmd.Flags().BoolVar(&eventsStats, "stats", false, "print per-type counts instead of event records")
}
