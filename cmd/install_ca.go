package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewInstallCACmd() *cobra.Command {
	return &cobra.Command{
		Use:   "install-ca",
		Short: "Generate and install the root CA without issuing a certificate",
		Long: `Generate the locert root CA (if it does not exist yet) and install it
into the system and browser trust stores. Issuing a certificate does
this automatically on first use; install-ca is for setting up trust
ahead of time, or for repairing a half-finished installation.

You may be prompted for your password to modify system trust stores.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := loadEngine()
			if err != nil {
				return err
			}

			fmt.Println("🔐 locert CA installation")
			if err := e.EnsureCA(); err != nil {
				fmt.Println("\n❌ CA installation failed")
				fmt.Println("Manual fallback: import the certificate below into your")
				fmt.Println("trust store and mark it trusted for TLS:")
				fmt.Printf("  %s/rootCA.crt\n", cfg.ConfigRoot)
				return err
			}

			fmt.Println("✅ Root CA present and trusted")
			fmt.Printf("   Config root: %s\n", cfg.ConfigRoot)
			if days := e.CAExpiryDays(); days >= 0 {
				fmt.Printf("   Expires in:  %d days\n", days)
			}
			return nil
		},
	}
}
