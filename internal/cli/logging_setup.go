package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/antoineMoPa/smoll-generated-corpus/internal/config"
	"github.com/antoineMoPa/smoll-generated-corpus/internal/logging"
)

// setupLogging builds the run logger from config and the --debug flag,
// tags it with a fresh run ID, and attaches it to the command context.
func setupLogging(cmd *cobra.Command, cfg *config.Config, result *logging.Result) context.Context {
	loggingCfg := logging.Config{
		Level:  cfg.Logging.Level,
		Format: resolveFormat(cfg.Logging.Format),
		File:   cfg.Logging.File,
	}

	if debug, _ := cmd.Flags().GetBool("debug"); debug {
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.File = ""
	}

	*result = logging.New(loggingCfg)
	if result.FallbackUsed {
		fmt.Fprintf(cmd.ErrOrStderr(),
			"Warning: could not open log file, logging to stderr: %s\n", result.FallbackReason)
	}

	logger := logging.ComponentLogger(result.Logger, "cli").
		With().Str("run_id", logging.NewRunID()).Logger()

	ctx := logger.WithContext(cmd.Context())
	logger.Debug().Str("command", cmd.Name()).Msg("command started")
	return ctx
}

// resolveFormat maps the "auto" config value to console on a terminal and
// json otherwise, so piped or scheduled runs emit structured logs.
func resolveFormat(format string) string {
	if format != "auto" && format != "" {
		return format
	}
	if term.IsTerminal(int(os.Stderr.Fd())) {
		return logging.FormatConsole
	}
	return logging.FormatJSON
}
