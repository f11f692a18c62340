package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"locert/cmd"
	"locert/internal/audit"
)

var version = "1.0.0"

func main() {
	rootCmd := &cobra.Command{
		Use:   "locert",
		Short: "Locally-trusted TLS certificates for development",
		Long: `locert provisions TLS certificates your local browsers trust without
manual trust-store surgery. It maintains a private root CA, installs it
into the operating system and browser trust stores, and issues cached
per-domain certificates signed by that CA.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&cmd.ConfigFile, "config", "", "config file (YAML)")
	rootCmd.PersistentFlags().BoolVarP(&cmd.AssumeYes, "yes", "y", false, "answer yes to privileged-action prompts")

	rootCmd.AddCommand(
		cmd.NewIssueCmd(),
		cmd.NewListCmd(),
		cmd.NewRemoveCmd(),
		cmd.NewInstallCACmd(),
		cmd.NewStatusCmd(),
		cmd.NewUninstallCmd(),
		newVersionCmd(),
	)

	err := rootCmd.Execute()
	audit.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("locert v%s\n", version)
		},
	}
}
