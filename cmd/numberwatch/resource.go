package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/prudhvinik1/numberwatch/internal/audit"
)

func resourceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resource",
		Short: "Manage monitored phone numbers",
	}
	cmd.AddCommand(resourceMonitorCmd())
	return cmd
}

func resourceMonitorCmd() *cobra.Command {
	var off bool

	cmd := &cobra.Command{
		Use:   "monitor [resource-id]",
		Short: "Turn monitoring of a phone number on, or off with --off",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resourceID, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid resource id: %w", err)
			}
			ctx := audit.WithActor(cmd.Context(), os.Getenv("USER"))

			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			err = a.resources.SetMonitoring(ctx, resourceID, !off)
			a.audit.Record(ctx, audit.ActorFromContext(ctx), "resource.monitor", "/resources/"+resourceID.String()+"/monitoring",
				err == nil, "", map[string]any{"enabled": !off})
			return err
		},
	}

	cmd.Flags().BoolVar(&off, "off", false, "stop monitoring the number")
	return cmd
}
