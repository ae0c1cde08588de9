// Package api holds the wire messages of the rtcauth service and the gRPC
// plumbing (codec, service descriptor, client) that carries them. The same
// structs are the JSON bodies of the HTTP API.
package api

// Empty is returned by calls with nothing to report.
type Empty struct{}

type RequestCodeRequest struct {
	Phone string `json:"phone"`
}

type LoginRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

// UserInfo describes an identity. Times are unix seconds.
type UserInfo struct {
	UserID      string `json:"user_id"`
	UserName    string `json:"user_name"`
	Phone       string `json:"phone,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
	LastLoginAt int64  `json:"last_login_at,omitempty"`
}

type LoginResponse struct {
	UserInfo
	LoginToken string `json:"login_token"`
	ExpiresAt  int64  `json:"expires_at"`
}

// SessionRequest identifies the caller by session token.
type SessionRequest struct {
	LoginToken string `json:"login_token"`
}

type TokenRequest struct {
	LoginToken string   `json:"login_token"`
	RoomID     string   `json:"room_id"`
	Privileges []string `json:"privileges"`
}

type Grant struct {
	Privilege string `json:"privilege"`
	ExpireAt  uint32 `json:"expire_at"`
}

type TokenResponse struct {
	Token           string  `json:"token"`
	AppID           string  `json:"app_id"`
	RoomID          string  `json:"room_id"`
	UserID          string  `json:"user_id"`
	IssuedAt        int64   `json:"issued_at"`
	Grants          []Grant `json:"grants"`
	ServerURL       string  `json:"server_url,omitempty"`
	ServerSignature string  `json:"server_signature"`
}

type RenameRequest struct {
	LoginToken string `json:"login_token"`
	UserName   string `json:"user_name"`
}

type RefreshResponse struct {
	LoginToken string `json:"login_token"`
	ExpiresAt  int64  `json:"expires_at"`
}

type UploadURLRequest struct {
	LoginToken string `json:"login_token"`
	FileName   string `json:"file_name"`
}

type UploadURLResponse struct {
	Key       string `json:"key"`
	URL       string `json:"url"`
	ExpiresAt int64  `json:"expires_at"`
}
