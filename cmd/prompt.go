// Package cmd contains auxiliary CLI commands.
package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// CreatePromptCmd creates the prompt command, which forwards a prompt
// through a running mixdeck server and prints the worker's response.
func CreatePromptCmd() *cobra.Command {
	var (
		addr     string
		username string
		password string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "prompt [text]",
		Short: "Send a prompt to the worker",
		Long:  `Send a prompt to the supervised worker through a running mixdeck server and print the raw response.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")

			payload, err := json.Marshal(map[string]string{"prompt": prompt})
			if err != nil {
				return fmt.Errorf("failed to encode prompt: %w", err)
			}

			url := strings.TrimRight(addr, "/") + "/api/prompt"
			req, err := http.NewRequestWithContext(cmd.Context(), http.MethodPost, url, bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("failed to build request: %w", err)
			}
			req.Header.Set("Content-Type", "application/json")
			if username != "" || password != "" {
				req.SetBasicAuth(username, password)
			}

			client := &http.Client{Timeout: timeout}
			resp, err := client.Do(req)
			if err != nil {
				return fmt.Errorf("request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("failed to read response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
			}

			var result struct {
				Response string `json:"response"`
			}
			if err := json.Unmarshal(body, &result); err != nil {
				// Not JSON, print as-is
				fmt.Fprintln(os.Stdout, string(body))
				return nil
			}
			fmt.Fprintln(os.Stdout, result.Response)
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "http://127.0.0.1:8089", "Base URL of the mixdeck server")
	cmd.Flags().StringVarP(&username, "username", "u", "", "Basic auth username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Basic auth password")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	return cmd
}
