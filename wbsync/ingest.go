package wbsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/notifier"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"github.com/bsm/redislock"
	"github.com/sirupsen/logrus"
)

const (
	feedbacksPageSize = 50

	// The feed returns timestamps without a zone; the portal's clock runs
	// three hours ahead of UTC.
	feedTimeOffset = 3 * time.Hour

	feedCreatedDateLayout = "2006-01-02T15:04:05Z07:00"

	ingestLockTTL = time.Minute
)

// Engine polls the review feed for tracked articles and turns new
// qualifying feedbacks into stored records plus one notification each.
type Engine struct {
	Notifier notifier.Notifier
}

func NewEngine(n notifier.Notifier) *Engine {
	return &Engine{Notifier: n}
}

// IngestForUser scans the feed of every supplier the user owns. A feed
// fetch failure is treated as session expiry: the session token is cleared,
// the user's suppliers are deleted and remaining suppliers are skipped.
// Re-running against the same feed never duplicates a feedback and never
// re-notifies; the unique index on (article, external id) is the guard.
func (e *Engine) IngestForUser(ctx context.Context, user *models.User) error {
	if !user.HasSession() {
		return nil
	}

	release, ok, err := e.lockUser(ctx, user.ID)
	if err != nil {
		return err
	}
	if !ok {
		// Another run holds the lock; per-user processing is serialized.
		return nil
	}
	defer release()

	suppliers, err := models.ListSuppliers(ctx, user.ID)
	if err != nil {
		return err
	}

	logger := config.GetLogger()
	for _, supplier := range suppliers {
		client := portal.NewClient(supplier.ExternalId, *user.WBToken)
		feedbacks, err := client.GetFeedbacks(ctx, 0, feedbacksPageSize)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"module":      "wbsync",
				"user_id":     user.ID,
				"supplier_id": supplier.ExternalId,
				"kind":        string(portal.KindOf(err)),
			}).Warn("feed fetch failed; resetting session")
			if resetErr := user.ResetWBToken(ctx); resetErr != nil {
				return resetErr
			}
			return err
		}

		for _, dto := range feedbacks {
			if err := e.processFeedback(ctx, user, supplier, dto); err != nil {
				config.LogError(logger, "wbsync", "IngestForUser", "process feedback", dto.ID, err)
			}
		}
	}
	return nil
}

// IngestForAllEligibleUsers fans ingestion out across every user with
// notifications enabled and an active session. Failures are isolated per
// user.
func (e *Engine) IngestForAllEligibleUsers(ctx context.Context) error {
	users, err := models.ListEligibleUsers(ctx)
	if err != nil {
		return err
	}

	for _, user := range users {
		if err := e.IngestForUser(ctx, user); err != nil {
			config.LogError(config.GetLogger(), "wbsync", "IngestForAllEligibleUsers", "user ingestion", user.ID, err)
		}
	}
	return nil
}

func (e *Engine) processFeedback(ctx context.Context, user *models.User, supplier *models.Supplier, dto portal.FeedbackDTO) error {
	nmId := dto.NmId.String()

	article, err := models.FindTrackedArticle(ctx, supplier.ID, nmId)
	if err != nil {
		if errors.Is(err, utils.ErrorRecordNotFound) {
			return nil
		}
		return err
	}
	if dto.ProductValuation > user.NotificationStars {
		return nil
	}

	// Cheap pre-check; the unique index still decides under concurrency.
	exists, err := models.FeedbackExists(ctx, article.ID, dto.ID)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	createdDate, err := time.Parse(feedCreatedDateLayout, dto.CreatedDate)
	if err != nil {
		return fmt.Errorf("parse feed timestamp %q: %w", dto.CreatedDate, err)
	}

	feedback := &models.Feedback{
		TrackedArticleId: article.ID,
		ExternalId:       dto.ID,
		Text:             dto.Text,
		Stars:            dto.ProductValuation,
		CreatedDate:      createdDate.Add(feedTimeOffset),
	}
	for _, link := range dto.PhotoLinks {
		feedback.Photos = append(feedback.Photos, &models.FeedbackPhoto{Url: link.MiniSize})
	}

	created, err := models.CreateFeedback(ctx, feedback)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	return e.Notifier.NotifyNewFeedback(ctx, user, supplier, article, feedback)
}

// lockUser takes the per-user ingestion lock when a locker is configured.
// Returns ok=false when another run already holds it.
func (e *Engine) lockUser(ctx context.Context, userId int) (func(), bool, error) {
	locker := config.GetRedisLock()
	if locker == nil {
		return func() {}, true, nil
	}

	lock, err := locker.Obtain(ctx, fmt.Sprintf("ingest:user:%d", userId), ingestLockTTL, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return func() { _ = lock.Release(ctx) }, true, nil
}
