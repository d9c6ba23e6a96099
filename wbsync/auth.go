package wbsync

import (
	"context"
	"fmt"
	"time"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
)

// Login state machine per user: unauthenticated -> code requested ->
// authenticated. At most one verification is in flight; a new code request
// overwrites the previous pending token.

const codeRequestCooldown = time.Minute

// RequestCode validates the phone, asks the portal to send a verification
// code and stores the pending token on the user. Requests are throttled to
// one per cooldown window so a double-tap does not burn the previous code.
func RequestCode(ctx context.Context, user *models.User, phone string) error {
	if err := utils.ValidatePhoneNumber(phone, utils.CountryCode); err != nil {
		return &portal.Error{Kind: portal.ErrorKindValidation, Message: "invalid phone number"}
	}

	throttleKey := fmt.Sprintf("logincode:user:%d", user.ID)
	if _, found, err := config.GetRedisValue(throttleKey); err == nil && found {
		return &portal.Error{Kind: portal.ErrorKindValidation, Message: "code already requested, wait a minute"}
	}

	client := portal.NewClient("", "")
	pendingToken, err := client.RequestLoginCode(ctx, utils.NormalizePhone(phone))
	if err != nil {
		return err
	}
	if err := config.SetRedisValue(throttleKey, "1", codeRequestCooldown); err != nil {
		config.LogError(config.GetLogger(), "wbsync", "RequestCode", "throttle mark", user.ID, err)
	}

	if user.PhoneNumber != phone {
		db := config.GetDB().WithContext(ctx)
		if err := db.Model(&models.User{}).Where("id = ?", user.ID).Update("phone_number", phone).Error; err != nil {
			return err
		}
		user.PhoneNumber = phone
	}
	return user.SetTempToken(ctx, pendingToken)
}

// VerifyCode exchanges the stored pending token and the received code for a
// session token, then reconciles suppliers. A wrong code keeps the pending
// token so the user can retry; an expired pending token resets the flow.
func VerifyCode(ctx context.Context, user *models.User, code string) error {
	if user.TempToken == nil || *user.TempToken == "" {
		return &portal.Error{Kind: portal.ErrorKindValidation, Message: "no login in progress"}
	}

	client := portal.NewClient("", "")
	wbToken, err := client.VerifyLoginCode(ctx, *user.TempToken, code)
	if err != nil {
		if portal.ReasonOf(err) == portal.ReasonInvalidToken {
			if resetErr := user.ResetTempToken(ctx); resetErr != nil {
				return resetErr
			}
		}
		return err
	}

	if err := user.SetWBToken(ctx, wbToken); err != nil {
		return err
	}

	if _, err := ReconcileSuppliers(ctx, user); err != nil {
		config.LogError(config.GetLogger(), "wbsync", "VerifyCode", "reconcile after login", user.ID, err)
	}
	return nil
}

// Cancel abandons an in-flight login attempt.
func Cancel(ctx context.Context, user *models.User) error {
	return user.ResetTempToken(ctx)
}

// Logout clears the session token and deletes the user's suppliers with all
// their descendants. Destructive and user-initiated.
func Logout(ctx context.Context, user *models.User) error {
	return user.ResetWBToken(ctx)
}
