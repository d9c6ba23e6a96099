package notifier

import (
	"context"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"github.com/sirupsen/logrus"
)

// Notifier delivers a freshly stored feedback to the owning user's chat
// channel. Ingestion invokes it exactly once per new feedback; rendering and
// transport are the implementation's business.
type Notifier interface {
	NotifyNewFeedback(ctx context.Context, user *models.User, supplier *models.Supplier, article *models.TrackedArticle, feedback *models.Feedback) error
}

// LogNotifier records notifications in the structured log. Used in tests and
// as a stand-in until a chat delivery backend is wired.
type LogNotifier struct{}

func (LogNotifier) NotifyNewFeedback(ctx context.Context, user *models.User, supplier *models.Supplier, article *models.TrackedArticle, feedback *models.Feedback) error {
	config.GetLogger().WithFields(logrus.Fields{
		"module":      "notifier",
		"chat_id":     user.ChatId,
		"supplier":    supplier.Name,
		"nm_id":       article.NmId,
		"external_id": feedback.ExternalId,
		"stars":       feedback.Stars,
	}).Info("new feedback notification")
	return nil
}
