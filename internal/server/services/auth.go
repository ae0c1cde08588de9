// Package services contains server-side business logic. This file implements
// AuthService, which turns a verified phone number into a durable identity,
// an opaque session and, on demand, a signed capability token.
package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dmitrijs2005/rtcauth/internal/clock"
	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/auth"
	"github.com/dmitrijs2005/rtcauth/internal/server/captoken"
	"github.com/dmitrijs2005/rtcauth/internal/server/config"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/rtcauth/internal/server/repositories/users"
	"github.com/dmitrijs2005/rtcauth/internal/server/verification"
)

const (
	MaxDisplayNameRunes = 64
	MaxRoomBytes        = 128
)

var (
	phonePattern = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
	codePattern  = regexp.MustCompile(`^[0-9]{4,8}$`)
)

// Options tune AuthService. Zero grant TTLs mean the grant never expires.
type Options struct {
	SessionTTL        time.Duration
	StoreTimeout      time.Duration
	GatewayTimeout    time.Duration
	PublishGrantTTL   time.Duration
	SubscribeGrantTTL time.Duration
	SignatureTTL      time.Duration
	SignatureKey      []byte
	ServerURL         string
}

// OptionsFromConfig picks the AuthService settings out of cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		SessionTTL:        cfg.SessionTTL,
		StoreTimeout:      cfg.StoreTimeout,
		GatewayTimeout:    cfg.GatewayTimeout,
		PublishGrantTTL:   cfg.PublishGrantTTL,
		SubscribeGrantTTL: cfg.SubscribeGrantTTL,
		SignatureTTL:      cfg.SignatureTTL,
		SignatureKey:      []byte(cfg.SignatureKey()),
		ServerURL:         cfg.RTCServerURL,
	}
}

// LoginResult is what a successful login hands back to the caller.
type LoginResult struct {
	User    *models.User
	Session models.Session
}

// CapabilityToken is a signed token plus the metadata clients need to use it.
type CapabilityToken struct {
	Token    string
	AppID    string
	Room     string
	UserID   string
	IssuedAt time.Time
	Grants   []captoken.Grant

	ServerURL       string
	ServerSignature string
}

// AuthService is stateless apart from its collaborators and safe for
// concurrent use.
type AuthService struct {
	users    users.Repository
	sessions sessions.Repository
	gateway  verification.Gateway
	issuer   *captoken.Issuer
	clock    clock.Clock
	log      logging.Logger
	opts     Options
}

func NewAuthService(u users.Repository, s sessions.Repository, g verification.Gateway,
	issuer *captoken.Issuer, clk clock.Clock, log logging.Logger, opts Options) *AuthService {
	return &AuthService{
		users:    u,
		sessions: s,
		gateway:  g,
		issuer:   issuer,
		clock:    clk,
		log:      log.With("module", "auth"),
		opts:     opts,
	}
}

// RequestCode asks the provider to send a login code to phone.
func (s *AuthService) RequestCode(ctx context.Context, phone string) error {
	phone, err := normalizePhone(phone)
	if err != nil {
		return err
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	defer cancel()

	if err := s.gateway.SendCode(gctx, phone); err != nil {
		s.log.Warn(ctx, "send code failed", "error", err)
		return wrapKind(common.ErrUpstream, "send code", err)
	}

	s.log.Debug(ctx, "code sent")
	return nil
}

// VerifyAndLogin checks code for phone and, when valid, logs the owner of
// phone in, creating their identity on first login. Two concurrent first
// logins for the same phone converge on one identity.
func (s *AuthService) VerifyAndLogin(ctx context.Context, phone, code string) (*LoginResult, error) {
	phone, err := normalizePhone(phone)
	if err != nil {
		return nil, err
	}
	if !codePattern.MatchString(code) {
		return nil, fmt.Errorf("%w: code must be 4 to 8 digits", common.ErrInvalidRequest)
	}

	gctx, cancel := context.WithTimeout(ctx, s.opts.GatewayTimeout)
	outcome, err := s.gateway.CheckCode(gctx, phone, code)
	cancel()
	if err != nil {
		s.log.Warn(ctx, "check code failed", "error", err)
		return nil, wrapKind(common.ErrUpstream, "check code", err)
	}

	switch outcome {
	case verification.Valid:
	case verification.ExpiredCode:
		return nil, common.ErrCodeExpired
	default:
		return nil, common.ErrCodeInvalid
	}

	now := s.clock.Now()

	user, err := s.findOrCreate(ctx, phone, now)
	if err != nil {
		return nil, err
	}

	token, err := common.MakeRandHexString(common.SessionTokenBytes)
	if err != nil {
		return nil, wrapKind(common.ErrPersistence, "session token", err)
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.sessions.Put(sctx, token, user.ID, s.opts.SessionTTL); err != nil {
		s.log.Error(ctx, "store session failed", "user_id", user.ID, "error", err)
		return nil, wrapKind(common.ErrPersistence, "store session", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID, "session", common.ShortToken(token))

	return &LoginResult{
		User: user,
		Session: models.Session{
			Token:     token,
			UserID:    user.ID,
			ExpiresAt: now.Add(s.opts.SessionTTL),
		},
	}, nil
}

// findOrCreate returns the identity bound to phone, creating it when absent.
// A create that loses a race re-reads the winner's row.
func (s *AuthService) findOrCreate(ctx context.Context, phone string, now time.Time) (*models.User, error) {
	user, err := s.getByPhone(ctx, phone)
	if err == nil {
		return s.touch(ctx, user, now)
	}
	if !errors.Is(err, common.ErrorNotFound) {
		return nil, wrapKind(common.ErrPersistence, "lookup user", err)
	}

	cctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	user, err = s.users.Create(cctx, phone, phone, now)
	cancel()
	switch {
	case err == nil:
		s.log.Info(ctx, "user created", "user_id", user.ID)
		return user, nil
	case errors.Is(err, common.ErrConflict):
		user, err = s.getByPhone(ctx, phone)
		if err != nil {
			return nil, wrapKind(common.ErrPersistence, "lookup user after conflict", err)
		}
		return s.touch(ctx, user, now)
	default:
		return nil, wrapKind(common.ErrPersistence, "create user", err)
	}
}

func (s *AuthService) getByPhone(ctx context.Context, phone string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.users.GetByPhone(ctx, phone)
}

func (s *AuthService) touch(ctx context.Context, user *models.User, now time.Time) (*models.User, error) {
	tctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.users.TouchLogin(tctx, user.ID, now); err != nil {
		return nil, wrapKind(common.ErrPersistence, "touch login", err)
	}
	user.LastLoginAt = now
	return user, nil
}

// ResolveSession returns the user id behind a live session token.
func (s *AuthService) ResolveSession(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("%w: missing session token", common.ErrSessionInvalid)
	}

	sctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	userID, err := s.sessions.Get(sctx, token)
	switch {
	case err == nil:
		return userID, nil
	case errors.Is(err, common.ErrorNotFound):
		return "", fmt.Errorf("%w: unknown or expired session", common.ErrSessionInvalid)
	default:
		s.log.Error(ctx, "session lookup failed", "session", common.ShortToken(token), "error", err)
		return "", wrapKind(common.ErrUpstream, "session lookup", err)
	}
}

// ExchangeForCapabilityToken issues a capability token for the session's
// user in room with privileges. An empty room means every room.
func (s *AuthService) ExchangeForCapabilityToken(ctx context.Context, sessionToken, room string, privileges []string) (*CapabilityToken, error) {
	if room == "" {
		room = captoken.WildcardRoom
	}
	if len(room) > MaxRoomBytes {
		return nil, fmt.Errorf("%w: room longer than %d bytes", common.ErrInvalidRequest, MaxRoomBytes)
	}
	if len(privileges) == 0 {
		return nil, fmt.Errorf("%w: no privileges requested", common.ErrInvalidRequest)
	}
	parsed := make([]captoken.Privilege, 0, len(privileges))
	for _, name := range privileges {
		p, err := captoken.ParsePrivilege(name)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrInvalidRequest, err)
		}
		parsed = append(parsed, p)
	}

	userID, err := s.ResolveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	grants := make([]captoken.Grant, 0, len(parsed))
	for _, p := range parsed {
		grants = append(grants, captoken.Grant{Privilege: p, ExpireAt: s.grantExpiry(p, now)})
	}

	// Inputs are validated above; a signing failure here is a configuration fault.
	token, err := s.issuer.Issue(room, userID, grants, now)
	if err != nil {
		s.log.Error(ctx, "issue token failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: issue token: %w", common.ErrUpstream, err)
	}
	decoded, err := captoken.Decode(token)
	if err != nil {
		return nil, fmt.Errorf("%w: decode token: %w", common.ErrUpstream, err)
	}

	signature, err := auth.SignResponse(userID, s.issuer.AppID(), room, now, s.opts.SignatureTTL, s.opts.SignatureKey)
	if err != nil {
		s.log.Error(ctx, "sign response failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("%w: sign response: %w", common.ErrUpstream, err)
	}

	s.log.Info(ctx, "capability token issued", "user_id", userID, "room", room, "privileges", privileges)

	return &CapabilityToken{
		Token:           token,
		AppID:           s.issuer.AppID(),
		Room:            room,
		UserID:          userID,
		IssuedAt:        time.Unix(int64(decoded.IssuedAt), 0).UTC(),
		Grants:          decoded.Grants,
		ServerURL:       s.opts.ServerURL,
		ServerSignature: signature,
	}, nil
}

func (s *AuthService) grantExpiry(p captoken.Privilege, now time.Time) uint32 {
	ttl := s.opts.SubscribeGrantTTL
	if p == captoken.PublishStream {
		ttl = s.opts.PublishGrantTTL
	}
	if ttl <= 0 {
		return 0
	}
	at := now.Add(ttl).Unix()
	if at > math.MaxUint32 {
		return math.MaxUint32
	}
	return uint32(at)
}

// RenameIdentity sets the display name of the session's user and returns
// the updated identity.
func (s *AuthService) RenameIdentity(ctx context.Context, sessionToken, name string) (*models.User, error) {
	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxDisplayNameRunes {
		return nil, fmt.Errorf("%w: display name must be 1 to %d characters", common.ErrInvalidRequest, MaxDisplayNameRunes)
	}
	if !utf8.ValidString(name) {
		return nil, fmt.Errorf("%w: display name is not valid utf-8", common.ErrInvalidRequest)
	}

	userID, err := s.ResolveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	user, err := s.users.Rename(rctx, userID, name, now)
	cancel()
	if err != nil {
		return nil, wrapKind(common.ErrPersistence, "rename", err)
	}

	s.log.Info(ctx, "user renamed", "user_id", userID)
	return user, nil
}

// GetProfile returns the identity behind a live session.
func (s *AuthService) GetProfile(ctx context.Context, sessionToken string) (*models.User, error) {
	userID, err := s.ResolveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	return s.getByID(ctx, userID)
}

func (s *AuthService) getByID(ctx context.Context, userID string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, wrapKind(common.ErrPersistence, "load user", err)
	}
	return user, nil
}

// Logout revokes a session. Revoking an unknown session succeeds.
func (s *AuthService) Logout(ctx context.Context, sessionToken string) error {
	if sessionToken == "" {
		return fmt.Errorf("%w: missing session token", common.ErrInvalidRequest)
	}

	dctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()

	if err := s.sessions.Delete(dctx, sessionToken); err != nil {
		return wrapKind(common.ErrPersistence, "delete session", err)
	}

	s.log.Info(ctx, "session revoked", "session", common.ShortToken(sessionToken))
	return nil
}

// RefreshSession pushes a live session's expiry to now plus the session TTL.
func (s *AuthService) RefreshSession(ctx context.Context, sessionToken string) (*models.Session, error) {
	userID, err := s.ResolveSession(ctx, sessionToken)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	rctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	ok, err := s.sessions.Refresh(rctx, sessionToken, s.opts.SessionTTL)
	cancel()
	if err != nil {
		return nil, wrapKind(common.ErrPersistence, "refresh session", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: session expired", common.ErrSessionInvalid)
	}

	return &models.Session{
		Token:     sessionToken,
		UserID:    userID,
		ExpiresAt: now.Add(s.opts.SessionTTL),
	}, nil
}

func normalizePhone(phone string) (string, error) {
	phone = strings.TrimSpace(phone)
	if !phonePattern.MatchString(phone) {
		return "", fmt.Errorf("%w: phone must be 6 to 15 digits with an optional leading +", common.ErrInvalidRequest)
	}
	return phone, nil
}

// wrapKind tags err with kind unless it already carries it.
func wrapKind(kind error, op string, err error) error {
	if errors.Is(err, kind) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", kind, op, err)
}
