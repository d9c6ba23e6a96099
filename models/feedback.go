package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"gorm.io/gorm"
)

// Feedback is a single customer review fetched from the portal feed.
// ExternalId is the portal review id; the unique index on
// (tracked_article_id, external_id) is the authoritative dedup guard, not
// the application-level existence check. Immutable after creation.
type Feedback struct {
	ID               int              `gorm:"primary_key" json:"id"`
	TrackedArticleId int              `gorm:"not null;uniqueIndex:idx_feedbacks_article_external" json:"tracked_article_id"`
	ExternalId       string           `gorm:"size:255;not null;uniqueIndex:idx_feedbacks_article_external" json:"external_id"`
	Text             string           `gorm:"type:text" json:"text"`
	Stars            int              `gorm:"not null" json:"stars"`
	CreatedDate      time.Time        `gorm:"not null" json:"created_date"`
	Photos           []*FeedbackPhoto `gorm:"constraint:OnDelete:CASCADE" json:"photos,omitempty"`
	CreatedAt        time.Time        `gorm:"autoCreateTime" json:"created_at"`
}

type FeedbackPhoto struct {
	ID         int    `gorm:"primary_key" json:"id"`
	FeedbackId int    `gorm:"index;not null" json:"feedback_id"`
	Url        string `gorm:"size:255" json:"url"`
}

// CreateFeedback inserts the feedback and its photos in one transaction.
// Returns created=false with a nil error when the (article, external id)
// pair already exists; concurrent ingestion runs race on the unique index
// and exactly one of them wins.
func CreateFeedback(ctx context.Context, feedback *Feedback) (bool, error) {
	db := config.GetDB().WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(feedback).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func FeedbackExists(ctx context.Context, trackedArticleId int, externalId string) (bool, error) {
	db := config.GetDB().WithContext(ctx)
	var count int64
	err := db.Model(&Feedback{}).
		Where("tracked_article_id = ? AND external_id = ?", trackedArticleId, externalId).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func ListFeedbacks(ctx context.Context, trackedArticleId int) ([]*Feedback, error) {
	db := config.GetDB().WithContext(ctx)
	var feedbacks []*Feedback
	err := db.Preload("Photos").
		Where("tracked_article_id = ?", trackedArticleId).
		Order("created_date DESC").
		Find(&feedbacks).Error
	if err != nil {
		return nil, err
	}
	return feedbacks, nil
}

func CountFeedbacks(ctx context.Context, trackedArticleId int) (int64, error) {
	db := config.GetDB().WithContext(ctx)
	var count int64
	err := db.Model(&Feedback{}).Where("tracked_article_id = ?", trackedArticleId).Count(&count).Error
	return count, err
}
