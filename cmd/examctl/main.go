package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	rootCmd := &cobra.Command{
		Use:   "examctl",
		Short: "Operate the exam editor auth service",
		Long: `examctl manages exam editor accounts and tokens.

Account and token commands read the same EXAM_* configuration as the server.
Session commands talk to a running server and keep the bearer token in a
local file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		userCmd(logger),
		tokenCmd(),
		loginCmd(logger),
		whoamiCmd(logger),
		logoutCmd(logger),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
