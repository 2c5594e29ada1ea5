package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonandersen/tokenctl/internal/auth"
	"github.com/jonandersen/tokenctl/internal/output"
)

// tokenOptions holds dependencies for the token commands.
type tokenOptions struct {
	coordinator *auth.Coordinator
	jsonMode    bool
	now         func() time.Time
	timeout     time.Duration
}

func (o *tokenOptions) context() (context.Context, context.CancelFunc) {
	timeout := o.timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), timeout)
}

func (o *tokenOptions) clock() time.Time {
	if o.now != nil {
		return o.now()
	}
	return time.Now()
}

// newTokenCmd creates the token command and its subcommands. opts is read
// when a command runs, so a PersistentPreRunE may fill it in.
func newTokenCmd(opts *tokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a valid access token",
		Long: `Print an access token, renewing it through the refresh token when the
cached one is missing or about to expire.

Examples:
  tokenctl token                    # Print the access token
  tokenctl token --json             # Print the full credential
  curl -H "Authorization: Bearer $(tokenctl token)" ...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runToken(cmd, opts)
		},
	}
	cmd.SilenceUsage = true

	cmd.AddCommand(newTokenShowCmd(opts))
	cmd.AddCommand(newTokenClearCmd(opts))
	cmd.AddCommand(newTokenRefreshCmd(opts))

	return cmd
}

func newTokenShowCmd(opts *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "show",
		Short:        "Show the cached token without renewing it",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenShow(cmd, opts)
		},
	}
}

func newTokenClearCmd(opts *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "clear",
		Short:        "Remove the cached token",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			if err := opts.coordinator.RemoveAccessToken(ctx); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}
			return output.New(cmd.OutOrStdout(), opts.jsonMode).Message("Cached token cleared.")
		},
	}
}

func newTokenRefreshCmd(opts *tokenOptions) *cobra.Command {
	return &cobra.Command{
		Use:          "refresh",
		Short:        "Discard the cached token and fetch a new one",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := opts.context()
			defer cancel()

			if err := opts.coordinator.RemoveAccessToken(ctx); err != nil {
				return fmt.Errorf("failed to clear token: %w", err)
			}
			return runToken(cmd, opts)
		},
	}
}

func runToken(cmd *cobra.Command, opts *tokenOptions) error {
	ctx, cancel := opts.context()
	defer cancel()

	cred, err := opts.coordinator.GetOrCreateAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to get access token: %w", err)
	}

	if !opts.jsonMode {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), cred.AccessToken)
		return err
	}

	fields := append([]output.Field{
		{Key: "access_token", Label: "Access Token", Value: cred.AccessToken},
	}, credentialFields(cred, opts.clock(), opts.coordinator.StaleMargin())...)
	return output.New(cmd.OutOrStdout(), true).Fields(fields)
}

func runTokenShow(cmd *cobra.Command, opts *tokenOptions) error {
	ctx, cancel := opts.context()
	defer cancel()

	formatter := output.New(cmd.OutOrStdout(), opts.jsonMode)

	cred, ok, err := opts.coordinator.GetAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to read cached token: %w", err)
	}
	if !ok {
		return formatter.Message("No cached token. Run: tokenctl token")
	}

	fields := append([]output.Field{
		{Key: "access_token", Label: "Access Token", Value: maskToken(cred.AccessToken)},
	}, credentialFields(cred, opts.clock(), opts.coordinator.StaleMargin())...)
	return formatter.Fields(fields)
}

// credentialFields describes cred without its token value.
func credentialFields(cred *auth.Credential, now time.Time, margin time.Duration) []output.Field {
	status := "fresh"
	if cred.ExpiresWithin(now, margin) {
		status = "stale"
	}

	remaining := cred.ExpiresAt.Sub(now).Truncate(time.Second)
	if remaining < 0 {
		remaining = 0
	}

	return []output.Field{
		{Key: "token_type", Label: "Type", Value: cred.TokenType},
		{Key: "status", Label: "Status", Value: status},
		{Key: "expires_at", Label: "Expires At", Value: cred.ExpiresAt.UTC().Format(time.RFC3339)},
		{Key: "expires_in", Label: "Expires In", Value: int64(remaining.Seconds())},
		{Key: "scope", Label: "Scope", Value: strings.Join(cred.Scope, " ")},
	}
}

// maskToken keeps enough of a token to tell tokens apart.
func maskToken(token string) string {
	const visible = 6
	if len(token) <= visible {
		return strings.Repeat("*", len(token))
	}
	return token[:visible] + strings.Repeat("*", 6)
}

func init() {
	opts := &tokenOptions{now: time.Now}

	tokenCmd := newTokenCmd(opts)
	tokenCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		opts.coordinator = a.Coordinator
		opts.jsonMode = GetJSONMode()
		opts.timeout = a.Config.RequestTimeout() + 5*time.Second
		return nil
	}
	rootCmd.AddCommand(tokenCmd)
}
