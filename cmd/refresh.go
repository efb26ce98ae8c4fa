package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gdesouza/repoindex/internal/discovery"
	"github.com/gdesouza/repoindex/internal/refresh"
)

var (
	refreshFull            bool
	refreshSince           string
	refreshGitHub          bool
	refreshGitHubReleases  bool
	refreshGitHubPRs       bool
	refreshGitHubIssues    bool
	refreshGitHubWorkflows bool
	refreshPyPI            bool
	refreshCRAN            bool
	refreshZenodo          bool
	refreshExtra           bool
	refreshDir             string
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Discover and enrich repositories under configured roots",
	RunE: func(cmd *cobra.Command, args []string) error {
		roots := cfg.Roots
		if refreshDir != "" {
			if err := discovery.ValidateRoot(refreshDir); err != nil {
				return fmt.Errorf("%w: %v", ErrUsage, err)
			}
			roots = []string{refreshDir}
		}
		if len(roots) == 0 {
			return fmt.Errorf("%w: no roots configured; pass --dir or set roots in config", ErrUsage)
		}

		var since time.Duration
		if refreshSince != "" {
			d, err := time.ParseDuration(refreshSince)
			if err != nil {
				return fmt.Errorf("%w: --since %q: %v", ErrUsage, refreshSince, err)
			}
			since = d
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		anyFlagSet := refreshGitHub || refreshPyPI || refreshCRAN || refreshZenodo || refreshExtra
		enableGitHub, enablePyPI, enableCRAN, enableZenodo := cfg.Enrichment.GitHub, cfg.Enrichment.PyPI, cfg.Enrichment.CRAN, cfg.Enrichment.Zenodo
		if anyFlagSet {
			enableGitHub, enablePyPI, enableCRAN, enableZenodo = refreshExtra, refreshExtra, refreshExtra, refreshExtra
			enableGitHub = enableGitHub || refreshGitHub
			enablePyPI = enablePyPI || refreshPyPI
			enableCRAN = enableCRAN || refreshCRAN
			enableZenodo = enableZenodo || refreshZenodo
		}

		opts := refresh.Options{
			Roots:                 roots,
			Exclude:               cfg.Exclude,
			Full:                  refreshFull,
			Since:                 since,
			EnableGitHub:          enableGitHub,
			EnableGitHubReleases:  refreshGitHubReleases || refreshExtra,
			EnableGitHubPRs:       refreshGitHubPRs || refreshExtra,
			EnableGitHubIssues:    refreshGitHubIssues || refreshExtra,
			EnableGitHubWorkflows: refreshGitHubWorkflows || refreshExtra,
			EnablePyPI:            enablePyPI,
			EnableCRAN:            enableCRAN,
			EnableZenodo:          enableZenodo,
			ORCID:                 cfg.Enrichment.ORCID,
			UserTags:              cfg.Tags,
			Logger:                log,
		}

		stats, err := refresh.Run(cmd.Context(), st, opts)
		if err != nil {
			return err
		}

		fmt.Printf("scanned=%d updated=%d skipped=%d errors=%d events_added=%d removed=%d\n",
			stats.Scanned, stats.Updated, stats.Skipped, stats.Errors, stats.EventsAdded, stats.Removed)
		return nil
	},
}

func init() {
	refreshCmd.Flags().BoolVar(&refreshFull, "full", false, "bypass staleness detection and re-enrich every repository")
	refreshCmd.Flags().StringVar(&refreshSince, "since", "", "event-scan window, e.g. 720h (default 90 days)")
	refreshCmd.Flags().BoolVar(&refreshGitHub, "github", false, "enable GitHub repo-metadata enrichment")
	refreshCmd.Flags().BoolVar(&refreshGitHubReleases, "github-releases", false, "scan github_release events")
	refreshCmd.Flags().BoolVar(&refreshGitHubPRs, "github-prs", false, "scan pr events")
	refreshCmd.Flags().BoolVar(&refreshGitHubIssues, "github-issues", false, "scan issue events")
	refreshCmd.Flags().BoolVar(&refreshGitHubWorkflows, "github-workflows", false, "scan workflow_run events")
	refreshCmd.Flags().BoolVar(&refreshPyPI, "pypi", false, "enable PyPI enrichment")
	refreshCmd.Flags().BoolVar(&refreshCRAN, "cran", false, "enable CRAN enrichment")
	refreshCmd.Flags().BoolVar(&refreshZenodo, "zenodo", false, "enable Zenodo/DOI matching")
	refreshCmd.Flags().BoolVar(&refreshExtra, "external", false, "enable every configured remote source and github event kind")
	refreshCmd.Flags().StringVar(&refreshDir, "dir", "", "refresh a single directory instead of configured roots")
}
