package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/park285/cheese-checkers/internal/admin"
	"github.com/park285/cheese-checkers/internal/obslog"
	"github.com/park285/cheese-checkers/internal/server"
)

func main() {
	if err := obslog.Init(obslog.Options{Level: "info", Console: true, Format: "console"}); err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer obslog.Sync()
	log := obslog.L()

	adminURL := os.Getenv("CHECKERS_ADMIN_URL")
	wsURL := os.Getenv("CHECKERS_WS_URL")
	if adminURL == "" && wsURL == "" {
		log.Fatal("CHECKERS_ADMIN_URL or CHECKERS_WS_URL is required")
	}

	failed := false
	if adminURL != "" {
		if !checkAdmin(log, admin.NewClient(adminURL, admin.WithTimeout(8*time.Second))) {
			failed = true
		}
	} else {
		log.Info("CHECKERS_ADMIN_URL not set; skipping admin check")
	}

	if wsURL == "" {
		log.Info("CHECKERS_WS_URL not set; skipping websocket probe")
	} else if !probe(log, wsURL) {
		failed = true
	}

	if failed {
		obslog.Sync()
		os.Exit(1)
	}
}

func checkAdmin(log *zap.Logger, client *admin.Client) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Health(ctx); err != nil {
		log.Error("healthz", zap.Error(err))
		return false
	}

	games, err := client.Games(ctx)
	if err != nil {
		log.Error("games", zap.Error(err))
		return false
	}
	log.Info("games", zap.Int("count", len(games)))
	for _, g := range games {
		fmt.Printf("%-24s players=%d turn=%-5s v%d updated=%s\n",
			g.ID, g.Players, g.Snapshot.Turn, g.Version, g.UpdatedAt.Format(time.RFC3339))
	}

	if live, err := client.Live(ctx); err == nil {
		log.Info("live index", zap.Int("count", len(live)))
	}
	if recent, err := client.Archive(ctx, 5); err == nil {
		for _, m := range recent {
			fmt.Printf("archived %-24s %s moves=%d %s\n", m.ID, m.Result, len(m.Moves), m.EndedAt.Format(time.RFC3339))
		}
	}
	return true
}

func probe(log *zap.Logger, wsURL string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	id := "probe-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	res, err := server.Probe(ctx, wsURL, id, nil)
	if err != nil {
		log.Error("ws probe", zap.String("match_id", id), zap.Error(err))
		return false
	}
	log.Info("ws probe ok",
		zap.String("match_id", id),
		zap.String("role", res.Role),
		zap.String("turn", res.Snapshot.Turn),
		zap.Duration("elapsed", res.Elapsed),
	)
	return true
}
