package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and revoke operator API tokens",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "issue [operator-id]",
		Short: "Issue a bearer token for an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			issued, err := a.auth.Issue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(issued.Token)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke-all [operator-id]",
		Short: "Revoke every live token of an operator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			n, err := a.auth.RevokeAll(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("revoked %d token(s)\n", n)
			return nil
		},
	})
	return cmd
}
