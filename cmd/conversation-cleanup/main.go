// Command conversation-cleanup removes stored conversation state for users
// whose consent record is missing or no longer allows emotion sensing.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/postgres"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/adapter/redis"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/app"
	"github.com/Manorajkrishan/NeuroSync-sub001/internal/platform/logging"
)

func main() {
	var (
		redisURL    = flag.String("redis", os.Getenv("REDIS_URL"), "Redis URL (or set REDIS_URL env)")
		databaseURL = flag.String("database", os.Getenv("DATABASE_URL"), "Postgres URL (or set DATABASE_URL env)")
		dryRun      = flag.Bool("dry-run", false, "Dry run mode (report orphans without deleting)")
		verbose     = flag.Bool("verbose", false, "Verbose logging")
	)
	flag.Parse()

	if *redisURL == "" || *databaseURL == "" {
		log.Fatal("Redis and Postgres URLs required (--redis/REDIS_URL and --database/DATABASE_URL)")
	}

	level := "info"
	if *verbose {
		level = "debug"
	}
	logging.InitLogger(level, "text")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	rdb, err := redis.NewClient(ctx, *redisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer func() { _ = rdb.Close() }()
	slog.Info("Connected to Redis", "url", sanitizeURL(*redisURL))

	pool, err := postgres.Connect(ctx, *databaseURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer pool.Close()

	sweeper := app.NewSweeper(
		redis.NewConversationStore(rdb, nil, time.Hour, nil),
		postgres.NewConsentRepo(pool),
		nil, nil, clockwork.NewRealClock(), time.Hour,
	)

	stats, err := sweeper.Sweep(ctx, *dryRun)
	if err != nil {
		log.Fatalf("Cleanup failed: %v", err)
	}

	slog.Info("Cleanup complete",
		"scanned", stats.Scanned,
		"orphaned", stats.Orphaned,
		"deleted", stats.Deleted,
		"dry_run", *dryRun)
}

// sanitizeURL hides the password of a connection URL for logging.
func sanitizeURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.SplitN(url, "@", 2)
		credParts := strings.Split(parts[0], ":")
		if len(credParts) >= 3 {
			return credParts[0] + ":" + credParts[1] + ":***@" + parts[1]
		}
	}
	return url
}
