package common

import (
	"encoding/hex"
	"errors"
	"testing"
)

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	s, err := MakeRandHexString(SessionTokenBytes)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != SessionTokenBytes*2 {
		t.Fatalf("expected hex length %d, got %d", SessionTokenBytes*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

func TestMakeRandHexString_ZeroSize(t *testing.T) {
	s, err := MakeRandHexString(0)
	if err != nil {
		t.Fatalf("unexpected error for size=0: %v", err)
	}
	if s != "" {
		t.Fatalf("expected empty string for size=0, got %q", s)
	}
}

func TestMakeRandHexString_Distinct(t *testing.T) {
	a, _ := MakeRandHexString(SessionTokenBytes)
	b, _ := MakeRandHexString(SessionTokenBytes)
	if a == b {
		t.Fatalf("two random tokens are identical: %q", a)
	}
}

func TestShortToken(t *testing.T) {
	if got := ShortToken("abc"); got != "abc" {
		t.Fatalf("short input changed: %q", got)
	}
	if got := ShortToken("0123456789abcdef"); got != "01234567..." {
		t.Fatalf("unexpected truncation: %q", got)
	}
}

func TestCodeErrorsWrapVerificationFailed(t *testing.T) {
	if !errors.Is(ErrCodeInvalid, ErrVerificationFailed) {
		t.Fatal("ErrCodeInvalid must wrap ErrVerificationFailed")
	}
	if !errors.Is(ErrCodeExpired, ErrVerificationFailed) {
		t.Fatal("ErrCodeExpired must wrap ErrVerificationFailed")
	}
	if errors.Is(ErrCodeInvalid, ErrCodeExpired) {
		t.Fatal("invalid and expired must stay distinct")
	}
}
