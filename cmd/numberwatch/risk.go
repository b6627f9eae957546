package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

func riskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "risk [actor]",
		Short: "Show the suspicion score of an operator over the last 24h",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			score, err := a.audit.Score(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(score)
		},
	}
}
