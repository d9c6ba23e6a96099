package notifier

import (
	"strings"
	"testing"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/models"
)

func TestStarsDisplay(t *testing.T) {
	if got := StarsDisplay(3); got != "⭐️⭐️⭐️" {
		t.Fatalf("unexpected rendering %q", got)
	}
	if got := StarsDisplay(0); got != "" {
		t.Fatalf("expected empty row for zero, got %q", got)
	}
	if got := StarsDisplay(-2); got != "" {
		t.Fatalf("expected empty row for negatives, got %q", got)
	}
}

func TestFormatNewFeedbackMessage(t *testing.T) {
	supplier := &models.Supplier{Name: "Shop"}
	article := &models.TrackedArticle{NmId: "100", Article: "SKU-100"}
	feedback := &models.Feedback{
		Stars:       2,
		Text:        "bad stitching",
		CreatedDate: time.Date(2024, 5, 1, 13, 0, 0, 0, time.UTC),
	}

	msg := FormatNewFeedbackMessage(supplier, article, feedback)

	for _, want := range []string{
		"<b>🍇 Shop</b>",
		"https://www.wildberries.ru/catalog/100/detail.aspx?targetUrl=SP",
		"SKU-100",
		"⭐️⭐️",
		"bad stitching",
		"2024.05.01 13:00:00",
	} {
		if !strings.Contains(msg, want) {
			t.Fatalf("message missing %q:\n%s", want, msg)
		}
	}
}
