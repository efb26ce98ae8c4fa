package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/gdesouza/repoindex/cmd"
	"github.com/gdesouza/repoindex/internal/discovery"
	"github.com/gdesouza/repoindex/internal/querylang"
	"github.com/gdesouza/repoindex/internal/store"
)

func main() {
	os.Exit(run())
}

// run maps error kinds onto exit codes (0 success, 1 store/query failure,
// 2 usage error), centralizing the mapping here rather than scattering
// os.Exit calls through cmd/*.go.
func run() int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintln(os.Stderr, "error:", err)

	var compileErr *querylang.QueryCompileError
	switch {
	case errors.As(err, &compileErr):
		return 2
	case errors.Is(err, discovery.ErrNotADirectory):
		return 2
	case errors.Is(err, cmd.ErrUsage):
		return 2
	case errors.Is(err, store.ErrSchemaFromFuture), errors.Is(err, store.ErrCorrupt):
		return 1
	default:
		return 1
	}
}
