package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
)

// User is the chat-side identity a seller portal session is bound to.
// WBToken is the long-lived portal session credential; TempToken is the
// short-lived pending token issued between the login-code request and its
// verification. Nil means absent for both.
type User struct {
	ID                int         `gorm:"primary_key" json:"id"`
	ChatId            int64       `gorm:"uniqueIndex;not null" json:"chat_id" binding:"required"`
	Username          string      `gorm:"size:200" json:"username"`
	PhoneNumber       string      `gorm:"size:50" json:"phone_number"`
	WBToken           *string     `gorm:"type:text" json:"-"`
	TempToken         *string     `gorm:"type:text" json:"-"`
	Notification      *bool       `gorm:"not null;default:true" json:"notification"`
	NotificationStars int         `gorm:"not null;default:5" json:"notification_stars"`
	Unactive          *bool       `gorm:"not null;default:false" json:"unactive"`
	Suppliers         []*Supplier `gorm:"constraint:OnDelete:CASCADE" json:"suppliers,omitempty"`
	CreatedAt         time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt         time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	ChatId      int64  `json:"chat_id" binding:"required"`
	Username    string `json:"username"`
	PhoneNumber string `json:"phone_number"`
}

func (u *User) HasSession() bool {
	return u.WBToken != nil && *u.WBToken != ""
}

func (u *User) IsUnactive() bool {
	return u.Unactive != nil && *u.Unactive
}

// CreateUser registers a chat user on first contact share. Idempotent on
// chat id: an existing record is returned untouched.
func CreateUser(ctx context.Context, input *NewUser) (*User, error) {
	db := config.GetDB().WithContext(ctx)

	var user User
	err := db.Where(User{ChatId: input.ChatId}).
		Attrs(User{Username: input.Username, PhoneNumber: input.PhoneNumber, NotificationStars: 5}).
		FirstOrCreate(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func GetUser(ctx context.Context, id int) (*User, error) {
	db := config.GetDB().WithContext(ctx)
	var user User
	if err := db.First(&user, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

func GetUserByChatId(ctx context.Context, chatId int64) (*User, error) {
	db := config.GetDB().WithContext(ctx)
	var user User
	if err := db.Where("chat_id = ?", chatId).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	return &user, nil
}

// ListEligibleUsers returns users the periodic ingestion fans out over:
// notifications enabled, an active session and not blocked.
func ListEligibleUsers(ctx context.Context) ([]*User, error) {
	db := config.GetDB().WithContext(ctx)
	var users []*User
	err := db.Where("notification = ? AND wb_token IS NOT NULL AND unactive = ?", true, false).
		Find(&users).Error
	if err != nil {
		return nil, err
	}
	return users, nil
}

// SetTempToken stores the pending authentication token, overwriting any
// prior pending token. Single UPDATE so two devices racing cannot interleave
// a read-modify-write.
func (u *User) SetTempToken(ctx context.Context, token string) error {
	db := config.GetDB().WithContext(ctx)
	if err := db.Model(&User{}).Where("id = ?", u.ID).Update("temp_token", token).Error; err != nil {
		return err
	}
	u.TempToken = &token
	return nil
}

func (u *User) ResetTempToken(ctx context.Context) error {
	db := config.GetDB().WithContext(ctx)
	if err := db.Model(&User{}).Where("id = ?", u.ID).Update("temp_token", nil).Error; err != nil {
		return err
	}
	u.TempToken = nil
	return nil
}

// SetWBToken persists the portal session token and consumes the pending
// token in the same write.
func (u *User) SetWBToken(ctx context.Context, token string) error {
	db := config.GetDB().WithContext(ctx)
	err := db.Model(&User{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"wb_token": token, "temp_token": nil}).Error
	if err != nil {
		return err
	}
	u.WBToken = &token
	u.TempToken = nil
	return nil
}

// ResetWBToken clears the session token and deletes all suppliers owned by
// the user together with their descendants (logout semantics).
func (u *User) ResetWBToken(ctx context.Context) error {
	err := DeleteSuppliersForUser(ctx, u.ID)
	if err != nil {
		return err
	}
	db := config.GetDB().WithContext(ctx)
	err = db.Model(&User{}).Where("id = ?", u.ID).
		Updates(map[string]interface{}{"wb_token": nil, "temp_token": nil}).Error
	if err != nil {
		return err
	}
	u.WBToken = nil
	u.TempToken = nil
	u.Suppliers = nil
	return nil
}

// SetNotificationStars updates the rating threshold for notifications.
func (u *User) SetNotificationStars(ctx context.Context, stars int) error {
	if stars < 1 || stars > 5 {
		return errors.New("notification stars must be between 1 and 5")
	}
	db := config.GetDB().WithContext(ctx)
	if err := db.Model(&User{}).Where("id = ?", u.ID).Update("notification_stars", stars).Error; err != nil {
		return err
	}
	u.NotificationStars = stars
	return nil
}

func (u *User) SetNotification(ctx context.Context, enabled bool) error {
	db := config.GetDB().WithContext(ctx)
	if err := db.Model(&User{}).Where("id = ?", u.ID).Update("notification", enabled).Error; err != nil {
		return err
	}
	u.Notification = &enabled
	return nil
}

// MarkUnactive flags a user whose delivery channel reported them
// unreachable. Users are never hard-deleted.
func MarkUnactive(ctx context.Context, chatId int64) error {
	db := config.GetDB().WithContext(ctx)
	return db.Model(&User{}).Where("chat_id = ?", chatId).Update("unactive", true).Error
}
