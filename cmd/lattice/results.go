package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	httpAdapter "github.com/aretw0/lattice/internal/adapters/http"
	"github.com/spf13/cobra"
)

// Manual results live in the serving process, so these commands talk to it.

var resultsCmd = &cobra.Command{
	Use:   "results",
	Short: "List manual results held open by a running server",
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, apiURL(server, "/v1/results"), nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("list results: %w", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("list results: %s", resp.Status)
		}

		var body httpAdapter.ResultsResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			return fmt.Errorf("decode results: %w", err)
		}
		for _, id := range body.Pending {
			fmt.Fprintln(cmd.OutOrStdout(), id)
		}
		return nil
	},
}

var releaseCmd = &cobra.Command{
	Use:   "release [result-id]",
	Short: "Release a manual result held open by a running server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		server, _ := cmd.Flags().GetString("server")

		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodDelete, releaseURL(server, args[0]), nil)
		if err != nil {
			return err
		}
		resp, err := httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("release %s: %w", args[0], err)
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusNoContent:
			fmt.Fprintf(cmd.OutOrStdout(), "released %s\n", args[0])
			return nil
		case http.StatusNotFound:
			return fmt.Errorf("result %s not found (already released?)", args[0])
		default:
			return fmt.Errorf("release %s: %s", args[0], resp.Status)
		}
	},
}

var httpClient = &http.Client{Timeout: 10 * time.Second}

func apiURL(server, path string) string {
	if !strings.Contains(server, "://") {
		server = "http://" + server
	}
	return strings.TrimRight(server, "/") + path
}

func releaseURL(server, id string) string {
	return apiURL(server, "/v1/results/"+url.PathEscape(id))
}

func init() {
	rootCmd.AddCommand(resultsCmd, releaseCmd)
	for _, c := range []*cobra.Command{resultsCmd, releaseCmd} {
		c.Flags().String("server", "localhost:8080", "Address of a running lattice serve")
	}
}
