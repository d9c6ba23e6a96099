package wbsync

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const testPhone = "+79161234567"

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

func newTestPortal(t *testing.T, handler http.Handler) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	t.Setenv("WB_PORTAL_BASE_URL", srv.URL)
}

func newTestUser(t *testing.T, ctx context.Context, chatId int64) *models.User {
	t.Helper()
	user, err := models.CreateUser(ctx, &models.NewUser{ChatId: chatId, Username: "tester"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	return user
}

func TestRequestCodeStoresPendingToken(t *testing.T) {
	newTestDB(t)
	newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/passport/api/v2/auth/login_by_phone" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprint(w, `{"token":"pending-1"}`)
	}))
	ctx := context.Background()
	user := newTestUser(t, ctx, 2001)

	if err := RequestCode(ctx, user, testPhone); err != nil {
		t.Fatalf("RequestCode: %v", err)
	}
	if user.TempToken == nil || *user.TempToken != "pending-1" {
		t.Fatalf("expected pending token stored, got %v", user.TempToken)
	}
	if user.PhoneNumber != testPhone {
		t.Fatalf("expected phone recorded, got %q", user.PhoneNumber)
	}
}

func TestRequestCodeRejectsMalformedPhone(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, ctx, 2002)

	err := RequestCode(ctx, user, "12345")
	if portal.KindOf(err) != portal.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if user.TempToken != nil {
		t.Fatalf("expected no pending token")
	}
}

func TestVerifyCodeWithoutPendingLogin(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, ctx, 2003)

	err := VerifyCode(ctx, user, "123456")
	if portal.KindOf(err) != portal.ErrorKindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestVerifyCodeWrongCodeKeepsPendingToken(t *testing.T) {
	newTestDB(t)
	newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_code"}`)
	}))
	ctx := context.Background()
	user := newTestUser(t, ctx, 2004)
	if err := user.SetTempToken(ctx, "pending-1"); err != nil {
		t.Fatalf("SetTempToken: %v", err)
	}

	err := VerifyCode(ctx, user, "000000")
	if portal.ReasonOf(err) != portal.ReasonInvalidCode {
		t.Fatalf("expected invalid code reason, got %v", err)
	}

	fresh, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if fresh.TempToken == nil || *fresh.TempToken != "pending-1" {
		t.Fatalf("expected pending token kept for retry, got %v", fresh.TempToken)
	}
	if fresh.HasSession() {
		t.Fatalf("expected no session")
	}
}

func TestVerifyCodeExpiredTokenResetsFlow(t *testing.T) {
	newTestDB(t)
	newTestPortal(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"invalid_token"}`)
	}))
	ctx := context.Background()
	user := newTestUser(t, ctx, 2005)
	if err := user.SetTempToken(ctx, "pending-stale"); err != nil {
		t.Fatalf("SetTempToken: %v", err)
	}

	err := VerifyCode(ctx, user, "123456")
	if portal.ReasonOf(err) != portal.ReasonInvalidToken {
		t.Fatalf("expected invalid token reason, got %v", err)
	}

	fresh, err := models.GetUser(ctx, user.ID)
	if err != nil {
		t.Fatalf("GetUser: %v", err)
	}
	if fresh.TempToken != nil {
		t.Fatalf("expected pending token cleared, got %v", fresh.TempToken)
	}
}

func TestVerifyCodeSuccessReconcilesSuppliers(t *testing.T) {
	newTestDB(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/passport/api/v2/auth/login", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "WBToken", Value: "session-1"})
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/ns/suppliers/suppliers-portal-core/suppliers", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"result":{"suppliers":[{"id":"sup-1","oldID":7,"name":"Shop","fullName":"Shop LLC"}]}}]`)
	})
	newTestPortal(t, mux)
	ctx := context.Background()
	user := newTestUser(t, ctx, 2006)
	if err := user.SetTempToken(ctx, "pending-1"); err != nil {
		t.Fatalf("SetTempToken: %v", err)
	}

	if err := VerifyCode(ctx, user, "123456"); err != nil {
		t.Fatalf("VerifyCode: %v", err)
	}
	if !user.HasSession() || *user.WBToken != "session-1" {
		t.Fatalf("expected session established, got %+v", user)
	}
	if user.TempToken != nil {
		t.Fatalf("expected pending token consumed")
	}

	suppliers, err := models.ListSuppliers(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSuppliers: %v", err)
	}
	if len(suppliers) != 1 || suppliers[0].ExternalId != "sup-1" {
		t.Fatalf("expected the portal supplier mirrored, got %+v", suppliers)
	}
}

func TestLogoutDropsSessionAndSuppliers(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user := newTestUser(t, ctx, 2007)
	if err := user.SetWBToken(ctx, "session-1"); err != nil {
		t.Fatalf("SetWBToken: %v", err)
	}
	if _, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{ExternalId: "sup-1"}); err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}

	if err := Logout(ctx, user); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if user.HasSession() {
		t.Fatalf("expected session cleared")
	}
	suppliers, err := models.ListSuppliers(ctx, user.ID)
	if err != nil {
		t.Fatalf("ListSuppliers: %v", err)
	}
	if len(suppliers) != 0 {
		t.Fatalf("expected suppliers deleted, got %+v", suppliers)
	}
}
