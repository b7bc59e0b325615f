// Package main provides the graphc CLI: compile topologies, inspect the optimized
// program and run it on the host.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/born-ml/graphc/internal/config"
)

const version = "v0.1.0-dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "graphc",
		Short:         "Inference graph compiler and executor",
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logrus.SetLevel(config.LogLevel())
			logrus.SetOutput(cmd.ErrOrStderr())
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "graphc %s\n", version)
		},
	}

	rootCmd.AddCommand(
		newCompileCmd(),
		newRunCmd(),
		newEnvCmd(),
		versionCmd,
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
