package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonandersen/tokenctl/internal/output"
)

// newWhoamiCmd creates the whoami command with the given options.
func newWhoamiCmd(opts *apiOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "whoami",
		Short:        "Show the account the token belongs to",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			user, err := opts.client.CurrentUser(ctx)
			if err != nil {
				return fmt.Errorf("failed to fetch profile: %w", err)
			}

			return output.New(cmd.OutOrStdout(), opts.jsonMode).Fields([]output.Field{
				{Key: "id", Label: "ID", Value: user.ID},
				{Key: "display_name", Label: "Name", Value: user.DisplayName},
				{Key: "email", Label: "Email", Value: user.Email},
				{Key: "country", Label: "Country", Value: user.Country},
				{Key: "product", Label: "Product", Value: user.Product},
			})
		},
	}
}

func init() {
	opts := &apiOptions{}

	whoamiCmd := newWhoamiCmd(opts)
	whoamiCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		opts.client = a.APIClient()
		opts.jsonMode = GetJSONMode()
		return nil
	}
	rootCmd.AddCommand(whoamiCmd)
}
