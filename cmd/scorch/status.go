package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/chosen8823/ghost-in-the-shell-sub000/cmd/scorch/internal/cli"
	"github.com/chosen8823/ghost-in-the-shell-sub000/internal/orchestrator"
)

var statusFlags struct {
	server  string
	timeout time.Duration
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the status of a running orchestrator",
	Long: `Fetch the status snapshot from a running 'scorch serve' through its admin
server. The address defaults to metrics.address from the configuration.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusFlags.server, "server", "", "Admin server URL or address (default: metrics.address)")
	statusCmd.Flags().DurationVar(&statusFlags.timeout, "timeout", 5*time.Second, "Request timeout")
}

func runStatus(cmd *cobra.Command, args []string) error {
	server := statusFlags.server
	if server == "" {
		server = appConfig.Metrics.Address
	}

	status, err := fetchStatus(cmd, statusURL(server), statusFlags.timeout)
	if err != nil {
		return err
	}

	if globalFlags.Format() == cli.FormatJSON {
		return cli.PrintJSON(cmd.OutOrStdout(), status)
	}
	renderStatus(cmd.OutOrStdout(), status)
	return nil
}

// statusURL turns an address such as ":9090" into the /status URL.
func statusURL(server string) string {
	if strings.HasPrefix(server, "http://") || strings.HasPrefix(server, "https://") {
		return strings.TrimSuffix(server, "/") + "/status"
	}
	host, port, err := net.SplitHostPort(server)
	if err == nil && (host == "" || host == "0.0.0.0" || host == "::") {
		server = net.JoinHostPort("127.0.0.1", port)
	}
	return "http://" + server + "/status"
}

func fetchStatus(cmd *cobra.Command, url string, timeout time.Duration) (orchestrator.Status, error) {
	var status orchestrator.Status

	req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, url, nil)
	if err != nil {
		return status, err
	}
	resp, err := (&http.Client{Timeout: timeout}).Do(req)
	if err != nil {
		return status, cli.WrapError(cli.ExitError, "orchestrator not reachable (is 'scorch serve' running?)", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return status, cli.WrapError(cli.ExitError, fmt.Sprintf("status request failed: %s", resp.Status), nil)
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return status, fmt.Errorf("failed to decode status: %w", err)
	}
	return status, nil
}
