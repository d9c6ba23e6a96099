package models_test

import (
	"context"
	"testing"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	config.SetDB(db)
	models.MigrateTable()
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})
}

func seedUserWithArticle(t *testing.T, ctx context.Context) (*models.User, *models.Supplier, *models.TrackedArticle) {
	t.Helper()
	user, err := models.CreateUser(ctx, &models.NewUser{ChatId: 1001, Username: "tester"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := user.SetWBToken(ctx, "session-token"); err != nil {
		t.Fatalf("SetWBToken: %v", err)
	}
	supplier, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{
		ExternalId: "sup-1", OldId: 42, Name: "Shop", FullName: "Shop LLC",
	})
	if err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	article, err := models.EnsureTrackedArticle(ctx, supplier.ID, &models.NewTrackedArticle{
		NmId: "100", Article: "SKU-100", Brand: "Acme",
	})
	if err != nil {
		t.Fatalf("EnsureTrackedArticle: %v", err)
	}
	return user, supplier, article
}

func TestCreateFeedbackDeduplicatesOnExternalId(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, _, article := seedUserWithArticle(t, ctx)

	first := &models.Feedback{
		TrackedArticleId: article.ID,
		ExternalId:       "r1",
		Text:             "bad stitching",
		Stars:            2,
		CreatedDate:      time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
		Photos:           []*models.FeedbackPhoto{{Url: "https://img.example/1.jpg"}},
	}
	created, err := models.CreateFeedback(ctx, first)
	if err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}
	if !created {
		t.Fatalf("expected first insert to create")
	}

	dup := &models.Feedback{
		TrackedArticleId: article.ID,
		ExternalId:       "r1",
		Text:             "bad stitching",
		Stars:            2,
		CreatedDate:      time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
	}
	created, err = models.CreateFeedback(ctx, dup)
	if err != nil {
		t.Fatalf("CreateFeedback duplicate: %v", err)
	}
	if created {
		t.Fatalf("expected duplicate insert to be suppressed by the unique index")
	}

	count, err := models.CountFeedbacks(ctx, article.ID)
	if err != nil {
		t.Fatalf("CountFeedbacks: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected exactly one feedback row, got %d", count)
	}

	feedbacks, err := models.ListFeedbacks(ctx, article.ID)
	if err != nil {
		t.Fatalf("ListFeedbacks: %v", err)
	}
	if len(feedbacks) != 1 || len(feedbacks[0].Photos) != 1 {
		t.Fatalf("expected one feedback with one photo, got %+v", feedbacks)
	}
}

func TestSameExternalIdAllowedUnderDifferentArticles(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, supplier, article := seedUserWithArticle(t, ctx)

	other, err := models.EnsureTrackedArticle(ctx, supplier.ID, &models.NewTrackedArticle{
		NmId: "200", Article: "SKU-200",
	})
	if err != nil {
		t.Fatalf("EnsureTrackedArticle: %v", err)
	}

	for _, id := range []int{article.ID, other.ID} {
		created, err := models.CreateFeedback(ctx, &models.Feedback{
			TrackedArticleId: id,
			ExternalId:       "r1",
			Stars:            1,
			CreatedDate:      time.Now(),
		})
		if err != nil || !created {
			t.Fatalf("expected create under article %d, created=%v err=%v", id, created, err)
		}
	}
}

func TestEnsureSupplierIdempotent(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, _, _ := seedUserWithArticle(t, ctx)

	again, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{
		ExternalId: "sup-1", Name: "Shop renamed",
	})
	if err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	if again.Name != "Shop" {
		t.Fatalf("expected existing supplier to be returned untouched, got %q", again.Name)
	}

	suppliers, err := models.ListSuppliers(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSuppliers: %v", err)
	}
	if len(suppliers) != 1 {
		t.Fatalf("expected one supplier, got %d", len(suppliers))
	}
}

func TestEnsureTrackedArticleIdempotent(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, supplier, _ := seedUserWithArticle(t, ctx)

	if _, err := models.EnsureTrackedArticle(ctx, supplier.ID, &models.NewTrackedArticle{
		NmId: "100", Article: "SKU-100-changed",
	}); err != nil {
		t.Fatalf("EnsureTrackedArticle: %v", err)
	}
	articles, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("ListTrackedArticles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected one tracked article, got %d", len(articles))
	}
}

func TestResetWBTokenCascades(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, _, article := seedUserWithArticle(t, ctx)

	if _, err := models.CreateFeedback(ctx, &models.Feedback{
		TrackedArticleId: article.ID,
		ExternalId:       "r1",
		Stars:            1,
		CreatedDate:      time.Now(),
		Photos:           []*models.FeedbackPhoto{{Url: "https://img.example/1.jpg"}},
	}); err != nil {
		t.Fatalf("CreateFeedback: %v", err)
	}

	if err := user.ResetWBToken(ctx); err != nil {
		t.Fatalf("ResetWBToken: %v", err)
	}
	if user.HasSession() {
		t.Fatalf("expected session cleared")
	}

	db := config.GetDB()
	for _, probe := range []struct {
		name  string
		model any
	}{
		{"suppliers", &models.Supplier{}},
		{"tracked_articles", &models.TrackedArticle{}},
		{"feedbacks", &models.Feedback{}},
		{"feedback_photos", &models.FeedbackPhoto{}},
	} {
		var count int64
		if err := db.Model(probe.model).Count(&count).Error; err != nil {
			t.Fatalf("count %s: %v", probe.name, err)
		}
		if count != 0 {
			t.Fatalf("expected %s emptied by logout cascade, got %d rows", probe.name, count)
		}
	}

	var fresh models.User
	if err := db.First(&fresh, user.ID).Error; err != nil {
		t.Fatalf("user must survive logout: %v", err)
	}
	if fresh.WBToken != nil || fresh.TempToken != nil {
		t.Fatalf("expected tokens cleared, got %+v", fresh)
	}
}

func TestSetNotificationStarsValidatesRange(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, _, _ := seedUserWithArticle(t, ctx)

	for _, stars := range []int{0, 6, -1} {
		if err := user.SetNotificationStars(ctx, stars); err == nil {
			t.Fatalf("expected range error for %d", stars)
		}
	}
	if err := user.SetNotificationStars(ctx, 3); err != nil {
		t.Fatalf("SetNotificationStars(3): %v", err)
	}

	fresh, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if fresh.NotificationStars != 3 {
		t.Fatalf("expected threshold persisted, got %d", fresh.NotificationStars)
	}
}

func TestListEligibleUsers(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()

	active, _, _ := seedUserWithArticle(t, ctx)

	// Registered but never logged in.
	if _, err := models.CreateUser(ctx, &models.NewUser{ChatId: 1002}); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	muted, err := models.CreateUser(ctx, &models.NewUser{ChatId: 1003})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := muted.SetWBToken(ctx, "tok"); err != nil {
		t.Fatalf("SetWBToken: %v", err)
	}
	if err := muted.SetNotification(ctx, false); err != nil {
		t.Fatalf("SetNotification: %v", err)
	}

	users, err := models.ListEligibleUsers(ctx)
	if err != nil {
		t.Fatalf("ListEligibleUsers: %v", err)
	}
	if len(users) != 1 || users[0].ID != active.ID {
		t.Fatalf("expected only the active sessioned user, got %+v", users)
	}
}
