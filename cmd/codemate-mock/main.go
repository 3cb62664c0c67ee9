package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"codemate/pkg/config"
	"codemate/pkg/logging"
	"codemate/pkg/mockserver"
)

func main() {
	port := flag.Int("port", mockserver.DefaultPort, "port to listen on")
	delay := flag.Duration("delay", mockserver.DefaultWordDelay, "delay between streamed words")
	logLevel := flag.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	logFile := flag.String("log-file", "", "log file (default ~/.codemate/logs/codemate-mock.log)")
	flag.Parse()

	cfg := config.Default()
	cfg.LogLevel = *logLevel
	cfg.LogFile = *logFile
	if cfg.LogFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.LogFile = filepath.Join(home, ".codemate", "logs", "codemate-mock.log")
		}
	}
	if _, err := logging.Init(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := fmt.Sprintf(":%d", *port)
	fmt.Printf("Mock AI server (%s) listening on http://localhost%s\n", mockserver.Model, addr)
	fmt.Printf("  API key: %s\n", mockserver.APIKey)
	fmt.Printf("  Endpoints: GET /health, GET /v1/models, POST /v1/chat/completions\n")

	srv := mockserver.New(mockserver.WithWordDelay(*delay))
	start := time.Now()
	if err := srv.ListenAndServe(ctx, addr); err != nil {
		fmt.Fprintf(os.Stderr, "Error running server: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Mock server stopped after %s\n", time.Since(start).Round(time.Second))
}
