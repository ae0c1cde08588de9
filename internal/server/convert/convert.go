// Package convert maps service results onto the wire messages shared by
// the gRPC and HTTP transports.
package convert

import (
	"github.com/dmitrijs2005/rtcauth/internal/api"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/dmitrijs2005/rtcauth/internal/server/services"
)

func UserInfo(u *models.User) *api.UserInfo {
	return &api.UserInfo{
		UserID:      u.ID,
		UserName:    u.DisplayName,
		Phone:       u.Phone,
		CreatedAt:   u.CreatedAt.Unix(),
		UpdatedAt:   u.UpdatedAt.Unix(),
		LastLoginAt: u.LastLoginAt.Unix(),
	}
}

func Login(r *services.LoginResult) *api.LoginResponse {
	return &api.LoginResponse{
		UserInfo:   *UserInfo(r.User),
		LoginToken: r.Session.Token,
		ExpiresAt:  r.Session.ExpiresAt.Unix(),
	}
}

func Token(t *services.CapabilityToken) *api.TokenResponse {
	grants := make([]api.Grant, 0, len(t.Grants))
	for _, g := range t.Grants {
		grants = append(grants, api.Grant{Privilege: string(g.Privilege), ExpireAt: g.ExpireAt})
	}
	return &api.TokenResponse{
		Token:           t.Token,
		AppID:           t.AppID,
		RoomID:          t.Room,
		UserID:          t.UserID,
		IssuedAt:        t.IssuedAt.Unix(),
		Grants:          grants,
		ServerURL:       t.ServerURL,
		ServerSignature: t.ServerSignature,
	}
}

func Refresh(s *models.Session) *api.RefreshResponse {
	return &api.RefreshResponse{LoginToken: s.Token, ExpiresAt: s.ExpiresAt.Unix()}
}

func Upload(u *services.UploadURL) *api.UploadURLResponse {
	return &api.UploadURLResponse{Key: u.Key, URL: u.URL, ExpiresAt: u.ExpiresAt.Unix()}
}
