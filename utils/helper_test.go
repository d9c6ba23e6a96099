package utils

import "testing"

func TestValidatePhoneNumber(t *testing.T) {
	if err := ValidatePhoneNumber("+79161234567", CountryCode); err != nil {
		t.Fatalf("expected valid mobile number, got %v", err)
	}
	if err := ValidatePhoneNumber("12345", CountryCode); err == nil {
		t.Fatalf("expected short number to be rejected")
	}
}

func TestNormalizePhone(t *testing.T) {
	if got := NormalizePhone(" +79161234567 "); got != "79161234567" {
		t.Fatalf("unexpected normalization %q", got)
	}
	if got := NormalizePhone("79161234567"); got != "79161234567" {
		t.Fatalf("expected bare number unchanged, got %q", got)
	}
}

func TestJwtRoundTrip(t *testing.T) {
	token, err := JwtGenerate(1001, "user")
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	parsed, err := JwtValidate(token)
	if err != nil {
		t.Fatalf("JwtValidate: %v", err)
	}
	claims, ok := parsed.Claims.(*JwtCustomClaim)
	if !ok || !parsed.Valid {
		t.Fatalf("unexpected claims %T valid=%v", parsed.Claims, parsed.Valid)
	}
	if claims.ChatId != 1001 || claims.Role != "user" {
		t.Fatalf("unexpected claims %+v", claims)
	}
}

func TestJwtValidateRejectsGarbage(t *testing.T) {
	if _, err := JwtValidate("not-a-token"); err == nil {
		t.Fatalf("expected parse failure")
	}
}
