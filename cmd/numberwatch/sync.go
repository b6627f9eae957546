package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/numberwatch/internal/audit"
	"github.com/prudhvinik1/numberwatch/internal/services"
)

func syncCmd() *cobra.Command {
	var (
		force bool
		all   bool
		actor string
	)

	cmd := &cobra.Command{
		Use:   "sync [account-id]",
		Short: "Synchronize one account, or every active account with --all",
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if actor != "" {
				ctx = audit.WithActor(ctx, actor)
			}

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			var results []services.SyncResult
			if all {
				results, err = a.scheduler.RunOnce(ctx)
				if err != nil {
					return err
				}
			} else {
				accountID, err := uuid.Parse(args[0])
				if err != nil {
					return fmt.Errorf("invalid account id: %w", err)
				}
				results = append(results, a.sync.Sync(ctx, accountID, force))
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(results); err != nil {
				return err
			}
			for _, res := range results {
				if res.Status == services.SyncFailed {
					return fmt.Errorf("sync of %s failed: %s", res.AccountID, res.Error)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "ignore the sync cooldown")
	cmd.Flags().BoolVar(&all, "all", false, "sync every active account")
	cmd.Flags().StringVar(&actor, "actor", os.Getenv("USER"), "operator recorded in the audit trail")
	return cmd
}
