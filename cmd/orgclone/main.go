package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/mistops/org-clone-workbench/internal/api"
	"github.com/mistops/org-clone-workbench/internal/config"
	"github.com/mistops/org-clone-workbench/internal/mist"
	"github.com/mistops/org-clone-workbench/internal/models"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("orgclone %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	cfg := config.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	server := &api.Server{
		Connections: models.NewConnectionStore(),
		Jobs:        models.NewJobStore(),
		Reports:     api.NewReportStore(),
		Log:         logger,
	}

	// Load pre-configured cloud profiles from config file
	for _, cc := range cfg.Clouds {
		conn := &models.Connection{
			Name:     cc.Name,
			Role:     cc.Role,
			BaseURL:  cc.BaseURL,
			Token:    cc.Token,
			Insecure: cc.Insecure,
		}
		if conn.Role == "" {
			conn.Role = "source"
		}
		server.Connections.Create(conn)
		fmt.Printf("Loaded cloud: %s (%s)\n", conn.Name, conn.BaseURL)

		// Verify reachability and token early
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := mist.NewClient(conn, logger).Ping(ctx); err != nil {
			fmt.Printf("  PING FAILED: %s: %v\n", conn.Name, err)
		} else {
			fmt.Printf("  PING OK: %s: token accepted\n", conn.Name)
		}
		cancel()
	}

	handler := api.NewRouter(server)

	fmt.Printf("Org Clone Workbench %s starting on %s\n", version, cfg.Listen)

	if err := http.ListenAndServe(cfg.Listen, handler); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
