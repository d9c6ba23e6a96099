package models

import (
	"context"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"gorm.io/gorm"
)

// Supplier is a seller account on the portal, owned by exactly one user.
// ExternalId is the portal-assigned supplier id; OldId its legacy numeric id.
type Supplier struct {
	ID              int               `gorm:"primary_key" json:"id"`
	UserId          int               `gorm:"not null;uniqueIndex:idx_suppliers_user_external" json:"user_id"`
	ExternalId      string            `gorm:"size:255;not null;uniqueIndex:idx_suppliers_user_external" json:"external_id"`
	OldId           int               `json:"old_id"`
	Name            string            `gorm:"size:150;not null" json:"name"`
	FullName        string            `gorm:"type:text" json:"full_name"`
	TrackedArticles []*TrackedArticle `gorm:"constraint:OnDelete:CASCADE" json:"tracked_articles,omitempty"`
	CreatedAt       time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewSupplier struct {
	ExternalId string `json:"external_id" binding:"required"`
	OldId      int    `json:"old_id"`
	Name       string `json:"name" binding:"required"`
	FullName   string `json:"full_name"`
}

// EnsureSupplier creates the supplier record for (user, external id) unless
// it already exists. Reconciliation calls this repeatedly; the unique index
// is the guard against duplicates.
func EnsureSupplier(ctx context.Context, userId int, input *NewSupplier) (*Supplier, error) {
	db := config.GetDB().WithContext(ctx)

	var supplier Supplier
	err := db.Where(Supplier{UserId: userId, ExternalId: input.ExternalId}).
		Attrs(Supplier{OldId: input.OldId, Name: input.Name, FullName: input.FullName}).
		FirstOrCreate(&supplier).Error
	if err != nil {
		return nil, err
	}
	return &supplier, nil
}

func GetSupplier(ctx context.Context, userId int, id int) (*Supplier, error) {
	db := config.GetDB().WithContext(ctx)
	var supplier Supplier
	if err := db.Where("id = ? AND user_id = ?", id, userId).First(&supplier).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &supplier, nil
}

func ListSuppliers(ctx context.Context, userId int) ([]*Supplier, error) {
	db := config.GetDB().WithContext(ctx)
	var suppliers []*Supplier
	if err := db.Where("user_id = ?", userId).Order("id").Find(&suppliers).Error; err != nil {
		return nil, err
	}
	return suppliers, nil
}

// DeleteSuppliersForUser removes all suppliers of the user with their
// tracked articles, feedbacks and photos in one transaction. Explicit
// deletes keep the cascade working on stores without FK enforcement.
func DeleteSuppliersForUser(ctx context.Context, userId int) error {
	db := config.GetDB().WithContext(ctx)
	return db.Transaction(func(tx *gorm.DB) error {
		supplierIds := tx.Model(&Supplier{}).Select("id").Where("user_id = ?", userId)
		articleIds := tx.Model(&TrackedArticle{}).Select("id").Where("supplier_id IN (?)", supplierIds)
		feedbackIds := tx.Model(&Feedback{}).Select("id").Where("tracked_article_id IN (?)", articleIds)

		if err := tx.Where("feedback_id IN (?)", feedbackIds).Delete(&FeedbackPhoto{}).Error; err != nil {
			return err
		}
		if err := tx.Where("tracked_article_id IN (?)", articleIds).Delete(&Feedback{}).Error; err != nil {
			return err
		}
		if err := tx.Where("supplier_id IN (?)", supplierIds).Delete(&TrackedArticle{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userId).Delete(&Supplier{}).Error
	})
}
