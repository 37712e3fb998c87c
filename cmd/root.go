package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pywatch/pywatch/internal/errs"
	"github.com/pywatch/pywatch/pkg/version"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:     "pywatch",
	Short:   "Watch a Python package tree and re-run only the tests an edit affects",
	Long:    "pywatch watches a Python package tree, tracks which test modules import\nwhich production modules, and re-runs only the tests affected by each\nedit instead of the whole suite.",
	Version: version.Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.SilenceErrors = true

	viper.SetEnvPrefix("pywatch")
	// "watch.run-timeout" resolves from PYWATCH_WATCH_RUN_TIMEOUT.
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command and exits with code 1 on error.
// ExitError is handled specially: its Code is used as the exit code.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *errs.ExitError
		if errors.As(err, &exitErr) {
			if exitErr.Message != "" {
				fmt.Fprintln(os.Stderr, exitErr.Message)
			}
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
