package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <domain> [domain...]",
		Short: "Revoke and remove the certificate for a domain set",
		Long: `Revoke the certificate issued for the given domain set through the
root CA, then delete its cached material. The next issue call for the
same domains generates a fresh certificate.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine()
			if err != nil {
				return err
			}

			if err := e.RemoveDomain(args); err != nil {
				return err
			}
			fmt.Println("✅ Certificate revoked and removed")
			return nil
		},
	}
}
