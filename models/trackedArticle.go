package models

import (
	"context"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"gorm.io/gorm"
)

// TrackedArticle is a catalog product the user monitors for new feedbacks.
// NmId is the portal catalog id; Article the seller-assigned code.
type TrackedArticle struct {
	ID         int         `gorm:"primary_key" json:"id"`
	SupplierId int         `gorm:"not null;uniqueIndex:idx_tracked_articles_supplier_nm" json:"supplier_id"`
	NmId       string      `gorm:"size:20;not null;uniqueIndex:idx_tracked_articles_supplier_nm" json:"nm_id"`
	Article    string      `gorm:"size:255;not null" json:"article"`
	Brand      string      `gorm:"size:255" json:"brand"`
	Feedbacks  []*Feedback `gorm:"constraint:OnDelete:CASCADE" json:"feedbacks,omitempty"`
	CreatedAt  time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewTrackedArticle struct {
	NmId    string `json:"nm_id" binding:"required"`
	Article string `json:"article" binding:"required"`
	Brand   string `json:"brand"`
}

// EnsureTrackedArticle creates the tracked article under the supplier unless
// one already exists for the same catalog id.
func EnsureTrackedArticle(ctx context.Context, supplierId int, input *NewTrackedArticle) (*TrackedArticle, error) {
	db := config.GetDB().WithContext(ctx)

	var article TrackedArticle
	err := db.Where(TrackedArticle{SupplierId: supplierId, NmId: input.NmId}).
		Attrs(TrackedArticle{Article: input.Article, Brand: input.Brand}).
		FirstOrCreate(&article).Error
	if err != nil {
		return nil, err
	}
	return &article, nil
}

// FindTrackedArticle returns the tracked article for (supplier, catalog id)
// or ErrorRecordNotFound.
func FindTrackedArticle(ctx context.Context, supplierId int, nmId string) (*TrackedArticle, error) {
	db := config.GetDB().WithContext(ctx)
	var article TrackedArticle
	err := db.Where("supplier_id = ? AND nm_id = ?", supplierId, nmId).First(&article).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &article, nil
}

// FindTrackedArticleForUser looks up a catalog id across all suppliers the
// user owns and returns the first match.
func FindTrackedArticleForUser(ctx context.Context, userId int, nmId string) (*TrackedArticle, error) {
	db := config.GetDB().WithContext(ctx)
	var article TrackedArticle
	err := db.Joins("JOIN suppliers ON suppliers.id = tracked_articles.supplier_id").
		Where("suppliers.user_id = ? AND tracked_articles.nm_id = ?", userId, nmId).
		Order("tracked_articles.id").
		First(&article).Error
	if err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &article, nil
}

func ListTrackedArticles(ctx context.Context, supplierId int) ([]*TrackedArticle, error) {
	db := config.GetDB().WithContext(ctx)
	var articles []*TrackedArticle
	if err := db.Where("supplier_id = ?", supplierId).Order("id").Find(&articles).Error; err != nil {
		return nil, err
	}
	return articles, nil
}

func ListTrackedArticlesForUser(ctx context.Context, userId int) ([]*TrackedArticle, error) {
	db := config.GetDB().WithContext(ctx)
	var articles []*TrackedArticle
	err := db.Joins("JOIN suppliers ON suppliers.id = tracked_articles.supplier_id").
		Where("suppliers.user_id = ?", userId).
		Order("tracked_articles.id").
		Find(&articles).Error
	if err != nil {
		return nil, err
	}
	return articles, nil
}

// DeleteTrackedArticle removes the article with its feedbacks and photos.
func DeleteTrackedArticle(ctx context.Context, id int) error {
	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		feedbackIds := tx.Model(&Feedback{}).Select("id").Where("tracked_article_id = ?", id)
		if err := tx.Where("feedback_id IN (?)", feedbackIds).Delete(&FeedbackPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tracked_article_id = ?", id).Delete(&Feedback{}).Error; err != nil {
			return err
		}
		return tx.Delete(&TrackedArticle{}, id).Error
	})
}
