package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jonandersen/tokenctl/internal/app"
	"github.com/jonandersen/tokenctl/internal/auth"
	"github.com/jonandersen/tokenctl/internal/config"
	"github.com/jonandersen/tokenctl/internal/keyring"
)

// passwordReader abstracts terminal password input for testing.
type passwordReader interface {
	ReadPassword() (string, error)
	IsTerminal() bool
}

// terminalReader reads passwords from the terminal using golang.org/x/term.
type terminalReader struct {
	fd int
}

// newTerminalReader creates a reader for the given file descriptor.
func newTerminalReader(fd int) *terminalReader {
	return &terminalReader{fd: fd}
}

func (r *terminalReader) ReadPassword() (string, error) {
	password, err := term.ReadPassword(r.fd)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func (r *terminalReader) IsTerminal() bool {
	return term.IsTerminal(r.fd)
}

// prompter abstracts interactive menu selection for testing.
type prompter interface {
	SelectOption(options []string) (int, error)
	ReadLine(prompt string) (string, error)
}

// terminalPrompter implements prompter using stdin.
type terminalPrompter struct {
	scanner *bufio.Scanner
	writer  io.Writer
}

func newTerminalPrompter(r io.Reader, w io.Writer) *terminalPrompter {
	return &terminalPrompter{scanner: bufio.NewScanner(r), writer: w}
}

func (p *terminalPrompter) SelectOption(options []string) (int, error) {
	for {
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return 0, err
			}
			return 0, fmt.Errorf("no input")
		}
		input := strings.TrimSpace(p.scanner.Text())
		idx, err := strconv.Atoi(input)
		if err != nil || idx < 1 || idx > len(options) {
			_, _ = fmt.Fprintf(p.writer, "Please enter a number between 1 and %d: ", len(options))
			continue
		}
		return idx - 1, nil // Convert to 0-indexed
	}
}

func (p *terminalPrompter) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.writer, prompt)
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", nil
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// configureOptions holds dependencies for the configure command.
// This allows for dependency injection in tests.
type configureOptions struct {
	configPath     string
	store          keyring.Store
	passwordReader passwordReader
	prompt         prompter
	logger         func() zerolog.Logger
}

func (o configureOptions) log() zerolog.Logger {
	if o.logger == nil {
		return zerolog.Nop()
	}
	return o.logger()
}

// newConfigureCmd creates the configure command with the given options.
func newConfigureCmd(opts configureOptions) *cobra.Command {
	var tokenURL string

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure client credentials",
		Long: `Configure the CLI with your OAuth2 client credentials and refresh token.

You will be prompted for the client ID, then for the client secret and the
refresh token without echo. The credentials are checked by exchanging the
refresh token once, then stored in the system keyring.

Example:
  tokenctl configure
  tokenctl configure --token-url https://auth.example.com/oauth/token`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, opts, tokenURL)
		},
	}

	cmd.Flags().StringVar(&tokenURL, "token-url", "", "Token endpoint URL (optional)")

	// Don't show usage info on validation errors - just show the error
	cmd.SilenceUsage = true

	return cmd
}

// reconfigureMenuOptions defines the menu options when already configured.
var reconfigureMenuOptions = []string{
	"Configure new credentials",
	"View current configuration",
	"Clear credentials",
}

func runConfigure(cmd *cobra.Command, opts configureOptions, tokenURL string) error {
	// Verify we're running in an interactive terminal
	if !opts.passwordReader.IsTerminal() {
		return fmt.Errorf("configure requires an interactive terminal\nRun this command directly in your terminal (not piped or in a script)")
	}

	if _, err := keyring.LoadClientCredentials(opts.store); err == nil {
		return runReconfigureMenu(cmd, opts, tokenURL)
	}

	return runInitialSetup(cmd, opts, tokenURL)
}

// runReconfigureMenu shows the reconfigure menu when already configured.
func runReconfigureMenu(cmd *cobra.Command, opts configureOptions, tokenURL string) error {
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "CLI is already configured. What would you like to do?")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for i, opt := range reconfigureMenuOptions {
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s\n", i+1, opt)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())
	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Select option: ")

	choice, err := opts.prompt.SelectOption(reconfigureMenuOptions)
	if err != nil {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	switch choice {
	case 0:
		return runInitialSetup(cmd, opts, tokenURL)
	case 1:
		return runViewConfiguration(cmd, opts)
	case 2:
		return runClearCredentials(cmd, opts)
	default:
		return fmt.Errorf("invalid selection")
	}
}

// runInitialSetup prompts for credentials, validates them with one token
// exchange and stores them.
func runInitialSetup(cmd *cobra.Command, opts configureOptions, tokenURL string) error {
	clientID, err := opts.prompt.ReadLine("Enter your client ID: ")
	if err != nil {
		return fmt.Errorf("failed to read client ID: %w", err)
	}

	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Enter your client secret: ")
	clientSecret, err := opts.passwordReader.ReadPassword()
	if err != nil {
		return fmt.Errorf("failed to read client secret: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout()) // Print newline after hidden input

	_, _ = fmt.Fprint(cmd.OutOrStdout(), "Enter your refresh token: ")
	refreshToken, err := opts.passwordReader.ReadPassword()
	if err != nil {
		return fmt.Errorf("failed to read refresh token: %w", err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	creds := auth.ClientCredentials{
		ClientID:     clientID,
		ClientSecret: strings.TrimSpace(clientSecret),
		RefreshToken: strings.TrimSpace(refreshToken),
	}
	switch {
	case creds.ClientID == "":
		return fmt.Errorf("client ID cannot be empty")
	case creds.ClientSecret == "":
		return fmt.Errorf("client secret cannot be empty")
	case creds.RefreshToken == "":
		return fmt.Errorf("refresh token cannot be empty")
	}

	// Load existing config or create new one
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if tokenURL != "" {
		cfg.TokenURL = tokenURL
	}

	a, err := app.NewWithCredentials(cfg, creds, opts.log())
	if err != nil {
		return err
	}

	// Drop any token minted for previous credentials, then exchange once.
	// The fetched credential stays cached for the next command.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout()+5*time.Second)
	defer cancel()

	if err := a.Coordinator.RemoveAccessToken(ctx); err != nil {
		return fmt.Errorf("failed to clear cached token: %w", err)
	}
	cred, err := a.Coordinator.GetOrCreateAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}

	if err := keyring.SaveClientCredentials(opts.store, creds); err != nil {
		return fmt.Errorf("failed to store credentials in keyring: %w", err)
	}

	if err := config.Save(opts.configPath, cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved successfully!")
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Access token valid until %s\n", cred.ExpiresAt.Local().Format(time.RFC1123))
	return nil
}

// runViewConfiguration displays the current configuration.
func runViewConfiguration(cmd *cobra.Command, opts configureOptions) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Current Configuration:")
	_, _ = fmt.Fprintln(out, "----------------------")

	if _, err := keyring.LoadClientCredentials(opts.store); err == nil {
		_, _ = fmt.Fprintln(out, "Client credentials: Configured")
	} else {
		_, _ = fmt.Fprintln(out, "Client credentials: Not configured")
	}

	_, _ = fmt.Fprintf(out, "Token URL: %s\n", cfg.TokenURL)
	_, _ = fmt.Fprintf(out, "API base URL: %s\n", cfg.APIBaseURL)
	_, _ = fmt.Fprintf(out, "Stale margin: %s\n", cfg.StaleMargin())
	_, _ = fmt.Fprintf(out, "Request timeout: %s\n", cfg.RequestTimeout())
	if cfg.Cache == config.CacheFile {
		_, _ = fmt.Fprintf(out, "Token cache: %s (%s)\n", cfg.Cache, cfg.ResolvedCacheDir())
	} else {
		_, _ = fmt.Fprintf(out, "Token cache: %s\n", cfg.Cache)
	}

	return nil
}

// runClearCredentials removes the stored credentials and any cached token.
func runClearCredentials(cmd *cobra.Command, opts configureOptions) error {
	if err := keyring.DeleteClientCredentials(opts.store); err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if store, err := app.NewStore(cfg); err == nil {
		if err := store.Remove(context.Background(), auth.DefaultCacheKey); err != nil {
			log := opts.log()
			log.Warn().Err(err).Msg("Failed to remove cached token")
		}
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared successfully.")
	return nil
}

func init() {
	// Create configure command with production dependencies
	configureCmd := newConfigureCmd(configureOptions{
		configPath:     config.ConfigPath(),
		store:          keyring.NewEnvStore(keyring.NewSystemStore()),
		passwordReader: newTerminalReader(int(os.Stdin.Fd())),
		prompt:         newTerminalPrompter(os.Stdin, os.Stdout),
		logger:         newLogger,
	})
	rootCmd.AddCommand(configureCmd)
}
