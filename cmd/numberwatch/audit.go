package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/prudhvinik1/numberwatch/internal/audit"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect the audit log",
	}
	cmd.AddCommand(auditVerifyCmd())
	return cmd
}

func auditVerifyCmd() *cobra.Command {
	var since time.Duration

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute the audit hash chain and report the first broken link",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			n, err := audit.VerifyStored(cmd.Context(), a.auditRepo, from)
			if err != nil {
				return fmt.Errorf("audit verify: %w", err)
			}
			fmt.Printf("verified %d events\n", n)
			return nil
		},
	}

	cmd.Flags().DurationVar(&since, "since", 0, "only verify events newer than this (0 verifies the whole chain)")
	return cmd
}
