package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/backoffice/pkg/activity"
	"github.com/platinummonkey/backoffice/pkg/tenancy"
)

var (
	dbURL              = flag.String("db-url", getEnv("BACKOFFICE_POSTGRES_URL", "postgres://localhost:5432/backoffice?sslmode=disable"), "PostgreSQL connection URL")
	schedule           = flag.String("schedule", "30 0 * * *", "Cron schedule for cleanup (default: 00:30 UTC)")
	invitationMaxAge   = flag.Int("invitation-max-age", 7, "Delete pending invitations older than this many days")
	notificationMaxAge = flag.Int("notification-max-age", 90, "Delete feed entries older than this many days")
	runOnce            = flag.Bool("run-once", false, "Run cleanup once and exit")
)

func main() {
	flag.Parse()

	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	store := tenancy.NewStore(db, tenancy.DefaultSidebarTemplates())
	feed := activity.NewStore(db)

	if *runOnce {
		if err := cleanup(store, feed); err != nil {
			log.Fatalf("Cleanup failed: %v", err)
		}
		log.Println("Cleanup completed successfully")
		return
	}

	c := cron.New()
	_, err = c.AddFunc(*schedule, func() {
		if err := cleanup(store, feed); err != nil {
			log.Printf("Cleanup failed: %v", err)
		}
	})
	if err != nil {
		log.Fatalf("Failed to schedule cleanup: %v", err)
	}

	c.Start()
	log.Println("Backoffice janitor started")
	log.Printf("Cleanup schedule: %s", *schedule)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down")
	<-c.Stop().Done()
}

func cleanup(store *tenancy.Store, feed *activity.Store) error {
	ctx := context.Background()

	invitations, err := store.DeleteExpiredInvitations(ctx, *invitationMaxAge)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d expired invitations (older than %d days)", invitations, *invitationMaxAge)

	notifications, err := feed.DeleteOlderThan(ctx, *notificationMaxAge)
	if err != nil {
		return err
	}
	log.Printf("Deleted %d old feed entries (older than %d days)", notifications, *notificationMaxAge)
	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
