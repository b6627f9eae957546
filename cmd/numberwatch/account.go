package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/numberwatch/internal/audit"
)

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage partner accounts",
	}
	cmd.AddCommand(accountCreateCmd())
	cmd.AddCommand(accountCredentialCmd())
	cmd.AddCommand(accountDeactivateCmd())
	cmd.AddCommand(accountStatusCmd())
	return cmd
}

func accountCreateCmd() *cobra.Command {
	var name, businessID string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Register a partner account; the token is read from stdin",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := readToken()
			if err != nil {
				return err
			}
			ctx := audit.WithActor(cmd.Context(), os.Getenv("USER"))

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			account, err := a.accounts.Create(ctx, name, businessID, token)
			a.audit.Record(ctx, audit.ActorFromContext(ctx), "account.create", "/accounts", err == nil, "",
				map[string]any{"business_account_id": businessID})
			if err != nil {
				return err
			}
			fmt.Println(account.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&businessID, "business-account-id", "", "partner business account id")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("business-account-id")
	return cmd
}

func accountCredentialCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "credential [account-id]",
		Short: "Re-register the account token (read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}
			token, err := readToken()
			if err != nil {
				return err
			}
			ctx := audit.WithActor(cmd.Context(), os.Getenv("USER"))

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.accounts.RegisterCredential(ctx, accountID, token)
			a.audit.Record(ctx, audit.ActorFromContext(ctx), "account.credential", "/accounts/"+accountID.String()+"/credential",
				err == nil, "", nil)
			return err
		},
	}
}

func accountDeactivateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deactivate [account-id]",
		Short: "Stop monitoring an account without deleting it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}
			ctx := audit.WithActor(cmd.Context(), os.Getenv("USER"))

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.accounts.Deactivate(ctx, accountID)
			a.audit.Record(ctx, audit.ActorFromContext(ctx), "account.deactivate", "/accounts/"+accountID.String(),
				err == nil, "", nil)
			return err
		},
	}
}

func accountStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status [account-id]",
		Short: "Show sync state, open alerts and resources of an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			accountID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid account id: %w", err)
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			status, err := a.accounts.Status(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(status)
		},
	}
}

func readToken() (string, error) {
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read token from stdin: %w", err)
	}
	return strings.TrimSpace(line), nil
}
