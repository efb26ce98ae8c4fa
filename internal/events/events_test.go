package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRawIDFormats(t *testing.T) {
	cases := []struct {
		name string
		e    Raw
		want string
	}{
		{
			name: "git_tag",
			e:    Raw{RepoName: "repoindex", Type: TypeGitTag, Data: map[string]any{"tag": "v1.0.0"}},
			want: "git_tag_repoindex_v1.0.0",
		},
		{
			name: "commit truncates to 8 hex",
			e:    Raw{RepoName: "repoindex", Type: TypeCommit, Data: map[string]any{"hash": "deadbeefcafebabe0011"}},
			want: "commit_repoindex_deadbeef",
		},
		{
			name: "merge truncates to 8 hex",
			e:    Raw{RepoName: "repoindex", Type: TypeMerge, Data: map[string]any{"hash": "abc12345cafebabe"}},
			want: "merge_repoindex_abc12345",
		},
		{
			name: "branch",
			e:    Raw{RepoName: "repoindex", Type: TypeBranch, Data: map[string]any{"branch": "feature/x", "action": "checkout"}},
			want: "branch_repoindex_feature/x_checkout",
		},
		{
			name: "pypi_publish",
			e:    Raw{RepoName: "repoindex", Type: TypePyPIPublish, Data: map[string]any{"package": "repoindex", "version": "1.2.3"}},
			want: "pypi_publish_repoindex_1.2.3",
		},
		{
			name: "unknown type falls back to timestamp",
			e:    Raw{RepoName: "repoindex", Type: "weird", Timestamp: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
			want: "weird_repoindex_20260102030405",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, tc.e.ID())
		})
	}
}

func TestRawIDStableAcrossRepeatedCalls(t *testing.T) {
	e := Raw{RepoName: "repoindex", Type: TypeGitTag, Data: map[string]any{"tag": "v2.0.0"}}
	require.Equal(t, e.ID(), e.ID())
}

func TestScanEmptyRepoListReturnsNoEvents(t *testing.T) {
	out, err := Scan(t.Context(), nil, ScanOptions{})
	require.NoError(t, err)
	require.Empty(t, out)
}
