package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/dmitrijs2005/rtcauth/internal/common"
)

func TestSignAndParse_Success(t *testing.T) {
	t.Parallel()

	secret := []byte("super-secret")
	now := time.Now()

	tok, err := SignResponse("user-123", "app-1", "room-9", now, time.Hour, secret)
	if err != nil {
		t.Fatalf("SignResponse error: %v", err)
	}

	claims, err := ParseSignature(tok, secret)
	if err != nil {
		t.Fatalf("ParseSignature error: %v", err)
	}
	if claims.UserID != "user-123" || claims.AppID != "app-1" || claims.Room != "room-9" {
		t.Fatalf("claims mismatch: %+v", claims)
	}
	if claims.Subject != "user-123" || claims.Issuer != Issuer {
		t.Fatalf("registered claims mismatch: %+v", claims.RegisteredClaims)
	}
	if claims.IssuedAt.Unix() != now.Unix() {
		t.Fatalf("issued at: got %v want %v", claims.IssuedAt.Unix(), now.Unix())
	}
}

func TestParseSignature_Expired(t *testing.T) {
	t.Parallel()

	secret := []byte("secret")
	tok, err := SignResponse("u1", "app", "*", time.Now().Add(-2*time.Hour), time.Hour, secret)
	if err != nil {
		t.Fatalf("SignResponse error: %v", err)
	}

	_, err = ParseSignature(tok, secret)
	if !errors.Is(err, common.ErrTokenExpired) {
		t.Fatalf("expected common.ErrTokenExpired, got %v", err)
	}
}

func TestParseSignature_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := SignResponse("u2", "app", "*", time.Now(), time.Hour, []byte("right-secret"))
	if err != nil {
		t.Fatalf("SignResponse error: %v", err)
	}

	_, err = ParseSignature(tok, []byte("wrong-secret"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParseSignature_MalformedString(t *testing.T) {
	t.Parallel()

	_, err := ParseSignature("not.a.jwt", []byte("k"))
	if !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParseSignature_RejectsOtherIssuer(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		UserID: "u",
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseSignature(tok, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}

func TestParseSignature_RejectsOtherAlgorithm(t *testing.T) {
	t.Parallel()

	secret := []byte("k")
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(secret)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	if _, err := ParseSignature(tok, secret); !errors.Is(err, common.ErrInvalidToken) {
		t.Fatalf("expected common.ErrInvalidToken, got %v", err)
	}
}
