// Package httpserver exposes the auth service as a JSON HTTP API on gin.
// Every operation has its own route; responses use the envelope
// {"code":200,"message":"ok","response":{...}}.
package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/rtcauth/internal/api"
	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/convert"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/dmitrijs2005/rtcauth/internal/server/services"
)

// SessionTokenHeader may carry the session token instead of the body field.
const SessionTokenHeader = "X-Login-Token"

// AuthService is the slice of services.AuthService the handlers call.
type AuthService interface {
	RequestCode(ctx context.Context, phone string) error
	VerifyAndLogin(ctx context.Context, phone, code string) (*services.LoginResult, error)
	ExchangeForCapabilityToken(ctx context.Context, sessionToken, room string, privileges []string) (*services.CapabilityToken, error)
	RenameIdentity(ctx context.Context, sessionToken, name string) (*models.User, error)
	Logout(ctx context.Context, sessionToken string) error
	RefreshSession(ctx context.Context, sessionToken string) (*models.Session, error)
	GetProfile(ctx context.Context, sessionToken string) (*models.User, error)
}

type UploadService interface {
	CreateUploadURL(ctx context.Context, sessionToken, fileName string) (*services.UploadURL, error)
}

// Envelope wraps every successful response.
type Envelope struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Response any    `json:"response,omitempty"`
}

// ErrorBody is returned for every failure.
type ErrorBody struct {
	Code    int    `json:"code"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

type Handler struct {
	auth    AuthService
	uploads UploadService
	logger  logging.Logger
}

func NewHandler(as AuthService, us UploadService, l logging.Logger) *Handler {
	return &Handler{auth: as, uploads: us, logger: l.With("module", "http_server")}
}

func ok(c *gin.Context, resp any) {
	c.JSON(http.StatusOK, Envelope{Code: http.StatusOK, Message: "ok", Response: resp})
}

// writeError maps a service error onto a status code and error kind.
func writeError(c *gin.Context, err error) {
	status, kind, msg := http.StatusInternalServerError, "persistence_error", common.ErrPersistence.Error()

	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		status, kind, msg = http.StatusBadRequest, "invalid_request", err.Error()
	case errors.Is(err, common.ErrCodeExpired):
		status, kind, msg = http.StatusGone, "code_expired", common.ErrCodeExpired.Error()
	case errors.Is(err, common.ErrVerificationFailed):
		status, kind, msg = http.StatusUnprocessableEntity, "code_invalid", common.ErrCodeInvalid.Error()
	case errors.Is(err, common.ErrSessionInvalid):
		status, kind, msg = http.StatusUnauthorized, "session_invalid", common.ErrSessionInvalid.Error()
	case errors.Is(err, common.ErrUpstream):
		status, kind, msg = http.StatusServiceUnavailable, "upstream_unavailable", common.ErrUpstream.Error()
	}

	c.AbortWithStatusJSON(status, ErrorBody{Code: status, Error: kind, Message: msg})
}

// bind decodes the JSON body into req; a malformed body is an invalid
// request. An empty body leaves req zeroed so the session may come from the
// header alone.
func bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, ErrorBody{
			Code:    http.StatusBadRequest,
			Error:   "invalid_request",
			Message: "malformed request body",
		})
		return false
	}
	return true
}

func sessionToken(c *gin.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	return c.GetHeader(SessionTokenHeader)
}

func (h *Handler) SendCode(c *gin.Context) {
	var req api.RequestCodeRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.RequestCode(c.Request.Context(), req.Phone); err != nil {
		writeError(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) Login(c *gin.Context) {
	var req api.LoginRequest
	if !bind(c, &req) {
		return
	}
	result, err := h.auth.VerifyAndLogin(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.Login(result))
}

func (h *Handler) CapabilityToken(c *gin.Context) {
	var req api.TokenRequest
	if !bind(c, &req) {
		return
	}
	token, err := h.auth.ExchangeForCapabilityToken(c.Request.Context(), sessionToken(c, req.LoginToken), req.RoomID, req.Privileges)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.Token(token))
}

func (h *Handler) Rename(c *gin.Context) {
	var req api.RenameRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.auth.RenameIdentity(c.Request.Context(), sessionToken(c, req.LoginToken), req.UserName)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.UserInfo(user))
}

func (h *Handler) Profile(c *gin.Context) {
	var req api.SessionRequest
	if !bind(c, &req) {
		return
	}
	user, err := h.auth.GetProfile(c.Request.Context(), sessionToken(c, req.LoginToken))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.UserInfo(user))
}

func (h *Handler) Refresh(c *gin.Context) {
	var req api.SessionRequest
	if !bind(c, &req) {
		return
	}
	session, err := h.auth.RefreshSession(c.Request.Context(), sessionToken(c, req.LoginToken))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.Refresh(session))
}

func (h *Handler) Logout(c *gin.Context) {
	var req api.SessionRequest
	if !bind(c, &req) {
		return
	}
	if err := h.auth.Logout(c.Request.Context(), sessionToken(c, req.LoginToken)); err != nil {
		writeError(c, err)
		return
	}
	ok(c, nil)
}

func (h *Handler) UploadURL(c *gin.Context) {
	if h.uploads == nil {
		c.AbortWithStatusJSON(http.StatusNotImplemented, ErrorBody{
			Code: http.StatusNotImplemented, Error: "not_implemented", Message: "uploads are disabled",
		})
		return
	}
	var req api.UploadURLRequest
	if !bind(c, &req) {
		return
	}
	out, err := h.uploads.CreateUploadURL(c.Request.Context(), sessionToken(c, req.LoginToken), req.FileName)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, convert.Upload(out))
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
