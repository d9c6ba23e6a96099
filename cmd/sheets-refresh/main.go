package main

import (
	"context"
	"log"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/gsheets"
	"bitbucket.org/pushfeedback/feedback_backend/models"
)

// One-off: rebuild the shared Google spreadsheet from the tracked articles.
func main() {
	config.ConnectDatabaseWithRetry()
	models.MigrateTable()

	ctx := context.Background()
	service, err := gsheets.NewService(ctx)
	if err != nil {
		log.Fatalf("sheets service: %v", err)
	}
	if err := service.RefreshTrackedSheets(ctx); err != nil {
		log.Fatalf("sheets refresh: %v", err)
	}
	log.Printf("sheets refresh complete")
}
