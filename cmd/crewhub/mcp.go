package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"crewhub/internal/config"
	"crewhub/internal/coordinator"
	"crewhub/internal/events"
	"crewhub/internal/mcpserver"
	"crewhub/internal/store"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the MCP tool interface over stdio",
	Long: `Runs an MCP server on stdin/stdout so MCP-aware clients can create tasks
and drive agents. Log output goes to stderr to keep the JSON-RPC stream clean.`,
	RunE: runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	// stdout carries JSON-RPC; everything else goes to stderr.
	log.SetOutput(os.Stderr)

	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.DBPath())
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	bus := events.NewBus()
	defer bus.Close()

	coord := coordinator.New(st, bus, cfg)
	return mcpserver.New(st, coord).Run(ctx, version)
}
