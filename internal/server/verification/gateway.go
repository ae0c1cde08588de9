// Package verification sends and checks one-time SMS codes through an
// external provider.
package verification

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/rtcauth/internal/common"
)

// Outcome is the provider's verdict on a submitted code.
type Outcome int

const (
	Valid Outcome = iota
	InvalidCode
	ExpiredCode
)

func (o Outcome) String() string {
	switch o {
	case Valid:
		return "valid"
	case InvalidCode:
		return "invalid_code"
	case ExpiredCode:
		return "expired_code"
	default:
		return "unknown"
	}
}

// ErrProvider marks failures reported by, or on the way to, the provider.
// It is a common.ErrUpstream.
var ErrProvider = fmt.Errorf("%w: sms provider", common.ErrUpstream)

// Gateway is the SMS verification provider.
type Gateway interface {
	// SendCode asks the provider to deliver a fresh code to phone.
	SendCode(ctx context.Context, phone string) error
	// CheckCode asks the provider whether code is currently valid for phone.
	CheckCode(ctx context.Context, phone, code string) (Outcome, error)
}
