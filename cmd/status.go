package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show CA state and certificate expiry",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, cfg, err := loadEngine()
			if err != nil {
				return err
			}

			fmt.Printf("Config root: %s\n", cfg.ConfigRoot)

			caDays := e.CAExpiryDays()
			if caDays < 0 {
				fmt.Println("Root CA:     not installed")
			} else {
				fmt.Printf("Root CA:     expires in %d days\n", caDays)
			}

			ids, err := e.ListDomains()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("Certificates: none")
				return nil
			}
			fmt.Println("Certificates:")
			for _, id := range ids {
				days := e.DomainExpiryDays(id)
				if days < 0 {
					fmt.Printf("  %-40s expiry unknown\n", id)
				} else {
					fmt.Printf("  %-40s expires in %d days\n", id, days)
				}
			}
			return nil
		},
	}
}
