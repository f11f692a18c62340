package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"locert/internal/ui"
)

func NewUninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall",
		Short: "Remove the root CA and all certificates",
		Long: `Remove the locert root CA from every trust store it was installed
into, then delete the CA material and all cached domain certificates.

This is destructive: previously issued certificates stop being trusted.
You may be prompted for your password to modify system trust stores.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := loadEngine()
			if err != nil {
				return err
			}

			if !AssumeYes && !cfg.Trust.AssumeYes {
				gate := ui.NewGate(nil)
				if !gate.Confirm("Remove the root CA and every issued certificate?") {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := e.RemoveAll(); err != nil {
				return err
			}
			fmt.Println("✅ Root CA and all certificates removed")
			return nil
		},
	}
}
