package models

import (
	"log"

	"bitbucket.org/pushfeedback/feedback_backend/config"
)

// MigrateTable run auto migration for all tables
func MigrateTable() {
	db := config.GetDB()

	err := db.AutoMigrate(
		&User{},
		&Supplier{},
		&TrackedArticle{},
		&Feedback{},
		&FeedbackPhoto{},
	)
	if err != nil {
		log.Printf("auto migration failed: %v", err)
	}
}
