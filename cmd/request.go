package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonandersen/tokenctl/internal/output"
	"github.com/jonandersen/tokenctl/pkg/apiclient"
)

// apiOptions holds dependencies for commands that call the API.
type apiOptions struct {
	client   *apiclient.Client
	jsonMode bool
}

// newRequestCmd creates the request command with the given options.
func newRequestCmd(opts *apiOptions) *cobra.Command {
	var method, data string

	cmd := &cobra.Command{
		Use:   "request PATH",
		Short: "Send an authenticated request to the API",
		Long: `Send a request to the configured API with a valid access token.

PATH is relative to api_base_url. A 401 response discards the cached
token and the request is retried once with a new one.

Examples:
  tokenctl request /me
  tokenctl request /me/player/pause --method PUT
  tokenctl request /me/playlists --method POST --data '{"name":"New"}'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRequest(cmd, opts, strings.ToUpper(method), args[0], data)
		},
	}

	cmd.Flags().StringVarP(&method, "method", "X", http.MethodGet, "HTTP method")
	cmd.Flags().StringVarP(&data, "data", "d", "", "JSON request body")
	cmd.SilenceUsage = true

	return cmd
}

func runRequest(cmd *cobra.Command, opts *apiOptions, method, path, data string) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	var body io.Reader
	if data != "" {
		if !json.Valid([]byte(data)) {
			return fmt.Errorf("--data must be valid JSON")
		}
		body = strings.NewReader(data)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	resp, err := opts.client.Do(ctx, method, path, body)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := apiclient.CheckResponse(resp); err != nil {
		return err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if len(respBody) == 0 {
		return output.New(cmd.OutOrStdout(), opts.jsonMode).Message(fmt.Sprintf("%d %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	if opts.jsonMode && json.Valid(respBody) {
		var indented bytes.Buffer
		if err := json.Indent(&indented, respBody, "", "  "); err == nil {
			respBody = append(indented.Bytes(), '\n')
		}
	}

	_, err = cmd.OutOrStdout().Write(respBody)
	return err
}

func init() {
	opts := &apiOptions{}

	requestCmd := newRequestCmd(opts)
	requestCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		opts.client = a.APIClient()
		opts.jsonMode = GetJSONMode()
		return nil
	}
	rootCmd.AddCommand(requestCmd)
}
