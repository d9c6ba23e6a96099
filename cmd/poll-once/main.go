package main

import (
	"context"
	"log"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/notifier"
	"bitbucket.org/pushfeedback/feedback_backend/wbsync"
)

// One-off: run a single ingestion pass over all eligible users. Useful for
// cron-style deployments and manual backfills.
func main() {
	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()
	models.MigrateTable()

	engine := wbsync.NewEngine(notifier.LogNotifier{})
	if err := engine.IngestForAllEligibleUsers(context.Background()); err != nil {
		log.Fatalf("ingestion pass failed: %v", err)
	}
	log.Printf("ingestion pass complete")
}
