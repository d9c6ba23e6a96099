package notifier

import (
	"fmt"
	"strings"

	"bitbucket.org/pushfeedback/feedback_backend/models"
)

const catalogLinkFormat = "https://www.wildberries.ru/catalog/%s/detail.aspx?targetUrl=SP"

// StarsDisplay renders a rating as a row of star glyphs.
func StarsDisplay(stars int) string {
	if stars < 0 {
		stars = 0
	}
	return strings.Repeat("⭐️", stars)
}

// FormatNewFeedbackMessage renders the HTML notification body for a newly
// stored feedback.
func FormatNewFeedbackMessage(supplier *models.Supplier, article *models.TrackedArticle, feedback *models.Feedback) string {
	var b strings.Builder
	fmt.Fprintf(&b, "<b>🍇 %s</b>\n\n", supplier.Name)
	b.WriteString("<b>🔔 Новый отзыв!</b>\n")
	fmt.Fprintf(&b, "🏷 <a href=\"%s\">%s</a> | %s\n\n", fmt.Sprintf(catalogLinkFormat, article.NmId), article.NmId, article.Article)
	fmt.Fprintf(&b, "<b>💫 Оценка:</b> %s\n", StarsDisplay(feedback.Stars))
	fmt.Fprintf(&b, "<b>📃 Содержание отзыва:</b>\n%s\n\n", feedback.Text)
	fmt.Fprintf(&b, "<i>🕐 Дата отзыва:</i> %s", feedback.CreatedDate.Format("2006.01.02 15:04:05"))
	return b.String()
}
