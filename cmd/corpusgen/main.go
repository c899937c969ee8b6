// corpusgen expands a text corpus with generated Q&A pairs, one resumable
// batch at a time.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/cli"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/config"
	"github.com/antoineMoPa/smoll-generated-corpus/pkg/version"
)

// Exit codes. Configuration problems are distinguished from runtime
// failures so wrapper scripts can tell a bad invocation from a bad run.
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := cli.NewRootCmd(version.GetVersion())
	root.SetArgs(args)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if errors.Is(err, config.ErrInvalidConfig) {
			return exitConfig
		}
		return exitError
	}
	return exitOK
}
