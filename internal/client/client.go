package client

import (
	"context"

	"github.com/dmitrijs2005/rtcauth/internal/api"
)

// Client is the transport-agnostic view of the rtcauth API used by the CLI.
type Client interface {
	Close() error
	Ping(ctx context.Context) error
	RequestCode(ctx context.Context, phone string) error
	Login(ctx context.Context, phone, code string) (*api.LoginResponse, error)
	CapabilityToken(ctx context.Context, room string, privileges []string) (*api.TokenResponse, error)
	Rename(ctx context.Context, name string) (*api.UserInfo, error)
	Profile(ctx context.Context) (*api.UserInfo, error)
	Refresh(ctx context.Context) (*api.RefreshResponse, error)
	Logout(ctx context.Context) error
	UploadURL(ctx context.Context, fileName string) (*api.UploadURLResponse, error)
	SessionToken() string
	SetSessionToken(token string)
}
