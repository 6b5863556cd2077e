package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"crewhub/internal/config"
	"crewhub/internal/liveout"
	"crewhub/internal/store"
	"crewhub/internal/tui"
)

var monitorServerFlag string

var monitorCmd = &cobra.Command{
	Use:   "monitor <project-id>",
	Short: "Live terminal view of agents and their streamed output",
	Args:  cobra.ExactArgs(1),
	RunE:  runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorServerFlag, "server", "", "crewhub server base URL (default http://<listen addr>)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return fmt.Errorf("monitor requires an interactive terminal")
	}

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := store.Open(ctx, cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	baseURL := monitorServerFlag
	if baseURL == "" {
		baseURL = "http://" + cfg.Listen
	}
	var token string
	if len(cfg.Tokens) > 0 {
		token = cfg.Tokens[0]
	}
	provider := &httpOutputProvider{
		baseURL: baseURL,
		token:   token,
		client:  &http.Client{Timeout: 5 * time.Second},
	}

	return tui.Run(st, provider, args[0])
}

// httpOutputProvider fetches live output from a running crewhub server. Live
// output is in-memory server state, so the monitor cannot read it from the
// database directly.
type httpOutputProvider struct {
	baseURL string
	token   string
	client  *http.Client
}

func (p *httpOutputProvider) LiveOutput(agentID string) *liveout.Record {
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/agents/%s/output", p.baseURL, agentID), nil)
	if err != nil {
		return nil
	}
	if p.token != "" {
		req.Header.Set("Authorization", "Bearer "+p.token)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var rec liveout.Record
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil
	}
	return &rec
}
