package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"crewhub/internal/config"
	"crewhub/internal/coordinator"
	"crewhub/internal/events"
	"crewhub/internal/httpserver"
	"crewhub/internal/scheduler"
	"crewhub/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator: scheduler, HTTP API, and WebSocket event stream",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(config.DefaultPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if len(cfg.Tokens) == 0 {
		token, err := generateToken()
		if err != nil {
			return fmt.Errorf("generate token: %w", err)
		}
		cfg.Tokens = []string{token}
		if saveErr := cfg.Save(config.DefaultPath()); saveErr != nil {
			fmt.Fprintf(os.Stderr, "[warn] could not save generated token: %v\n", saveErr)
		}
		fmt.Printf("Generated API token: %s\n", token)
		fmt.Printf("(saved to %s)\n", config.DefaultPath())
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
	hub := events.NewHub(bus)

	coord := coordinator.New(st, bus, cfg)
	sched := scheduler.New(st, coord, bus, cfg)

	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		if err := sched.Run(ctx); err != nil {
			log.Printf("[serve] scheduler: %v", err)
		}
	}()

	api := httpserver.New(st, coord, bus, hub, cfg.Tokens, version)
	httpSrv := &http.Server{Addr: cfg.Listen, Handler: api.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[serve] http shutdown: %v", err)
		}
	}()

	log.Printf("[serve] crewhub %s listening on %s", version, cfg.Listen)
	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	<-schedDone
	log.Printf("[serve] shutdown complete")
	return nil
}

func generateToken() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
