package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List domain sets with cached certificates",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, _, err := loadEngine()
			if err != nil {
				return err
			}

			ids, err := e.ListDomains()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Println("No certificates configured.")
				return nil
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}
