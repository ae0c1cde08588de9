// Package captoken mints and verifies the capability tokens handed to RTC
// clients. A token binds an application, a room scope and a user to a set
// of per-privilege grants and is authenticated with HMAC-SHA256 under the
// application key shared with the media service, which verifies it offline.
//
// Wire format:
//
//	token   = "001" || base64url-nopad( str(payload) || str(signature) )
//	payload = str(app_id) str(room) str(user_id) u32(issued_at)
//	          u16(n) n * ( u16(privilege) u32(expire_at) )
//	str(x)  = u16(len(x)) || x
//
// Integers are little-endian. Grants are sorted by privilege code and
// unique; expire_at 0 means the grant never expires.
package captoken

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
)

// Version prefixes every token string.
const Version = "001"

// WildcardRoom scopes a token to every room of the application.
const WildcardRoom = "*"

const signatureSize = sha256.Size

var encoding = base64.RawURLEncoding.Strict()

var (
	ErrMissingCredentials = errors.New("captoken: app id and app key are required")
	ErrEmptyField         = errors.New("captoken: room and user id are required")
	ErrFieldTooLong       = errors.New("captoken: field exceeds 65535 bytes")
	ErrUnknownPrivilege   = errors.New("captoken: unknown privilege")
	ErrTimeOutOfRange     = errors.New("captoken: timestamp out of range")

	ErrMalformed        = fmt.Errorf("%w: malformed", common.ErrInvalidToken)
	ErrInvalidSignature = fmt.Errorf("%w: signature mismatch", common.ErrInvalidToken)
	ErrAppMismatch      = fmt.Errorf("%w: issued for another app", common.ErrInvalidToken)
)

// Grant is a single privilege with its own expiry (unix seconds, 0 = never).
type Grant struct {
	Privilege Privilege
	ExpireAt  uint32
}

// Token is the decoded content of a capability token.
type Token struct {
	AppID    string
	Room     string
	UserID   string
	IssuedAt uint32
	Grants   []Grant
}

// Allows reports whether the token carries privilege p and that grant is
// still valid at now.
func (t *Token) Allows(p Privilege, now time.Time) bool {
	for _, g := range t.Grants {
		if g.Privilege != p {
			continue
		}
		return g.ExpireAt == 0 || now.Unix() < int64(g.ExpireAt)
	}
	return false
}

// AppliesTo reports whether the token's room scope covers room.
func (t *Token) AppliesTo(room string) bool {
	return t.Room == WildcardRoom || t.Room == room
}

// Issuer mints tokens for a single application.
type Issuer struct {
	appID string
	key   []byte
}

// NewIssuer binds an issuer to an application id and key. Both must be
// non-empty; a failure here is a configuration error.
func NewIssuer(appID, appKey string) (*Issuer, error) {
	if appID == "" || appKey == "" {
		return nil, ErrMissingCredentials
	}
	if len(appID) > math.MaxUint16 {
		return nil, ErrFieldTooLong
	}
	return &Issuer{appID: appID, key: []byte(appKey)}, nil
}

func (i *Issuer) AppID() string { return i.appID }

// Issue mints a token for userID in room carrying grants, stamped with
// issuedAt. Duplicate privileges are merged: a never-expiring grant wins,
// otherwise the later expiry wins.
func (i *Issuer) Issue(room, userID string, grants []Grant, issuedAt time.Time) (string, error) {
	if room == "" || userID == "" {
		return "", ErrEmptyField
	}
	issued := issuedAt.Unix()
	if issued < 0 || issued > math.MaxUint32 {
		return "", ErrTimeOutOfRange
	}

	normalized, err := normalizeGrants(grants)
	if err != nil {
		return "", err
	}

	payload, err := encodePayload(&Token{
		AppID:    i.appID,
		Room:     room,
		UserID:   userID,
		IssuedAt: uint32(issued),
		Grants:   normalized,
	})
	if err != nil {
		return "", err
	}

	mac := hmac.New(sha256.New, i.key)
	mac.Write(payload)

	var w writer
	w.bytes(payload)
	w.bytes(mac.Sum(nil))
	if w.err != nil {
		return "", w.err
	}

	return Version + encoding.EncodeToString(w.buf), nil
}

// Verify checks the signature under the issuer's key and that the token was
// issued for this issuer's application.
func (i *Issuer) Verify(token string) (*Token, error) {
	t, err := verify(token, i.key)
	if err != nil {
		return nil, err
	}
	if t.AppID != i.appID {
		return nil, ErrAppMismatch
	}
	return t, nil
}

// Issue is a convenience wrapper around NewIssuer and Issuer.Issue.
func Issue(appID, appKey, room, userID string, grants []Grant, issuedAt time.Time) (string, error) {
	i, err := NewIssuer(appID, appKey)
	if err != nil {
		return "", err
	}
	return i.Issue(room, userID, grants, issuedAt)
}

// Verify authenticates token with appKey and returns its content.
func Verify(token, appKey string) (*Token, error) {
	if appKey == "" {
		return nil, ErrMissingCredentials
	}
	return verify(token, []byte(appKey))
}

// Decode parses a token without checking its signature. The result must not
// be used for authorization.
func Decode(token string) (*Token, error) {
	payload, _, err := split(token)
	if err != nil {
		return nil, err
	}
	return decodePayload(payload)
}

func verify(token string, key []byte) (*Token, error) {
	payload, signature, err := split(token)
	if err != nil {
		return nil, err
	}

	mac := hmac.New(sha256.New, key)
	mac.Write(payload)
	if !hmac.Equal(mac.Sum(nil), signature) {
		return nil, ErrInvalidSignature
	}

	return decodePayload(payload)
}

func split(token string) (payload, signature []byte, err error) {
	if len(token) <= len(Version) || token[:len(Version)] != Version {
		return nil, nil, ErrMalformed
	}
	raw, err := encoding.DecodeString(token[len(Version):])
	if err != nil {
		return nil, nil, ErrMalformed
	}

	r := reader{buf: raw}
	payload = r.bytes()
	signature = r.bytes()
	if r.err != nil || !r.done() || len(signature) != signatureSize {
		return nil, nil, ErrMalformed
	}
	return payload, signature, nil
}

func normalizeGrants(grants []Grant) ([]Grant, error) {
	merged := make(map[Privilege]uint32, len(grants))
	for _, g := range grants {
		if _, ok := g.Privilege.code(); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownPrivilege, g.Privilege)
		}
		prev, seen := merged[g.Privilege]
		switch {
		case !seen:
			merged[g.Privilege] = g.ExpireAt
		case prev == 0 || g.ExpireAt == 0:
			merged[g.Privilege] = 0
		case g.ExpireAt > prev:
			merged[g.Privilege] = g.ExpireAt
		}
	}

	out := make([]Grant, 0, len(merged))
	for p, exp := range merged {
		out = append(out, Grant{Privilege: p, ExpireAt: exp})
	}
	sort.Slice(out, func(a, b int) bool {
		ca, _ := out[a].Privilege.code()
		cb, _ := out[b].Privilege.code()
		return ca < cb
	})
	return out, nil
}

func encodePayload(t *Token) ([]byte, error) {
	var w writer
	w.str(t.AppID)
	w.str(t.Room)
	w.str(t.UserID)
	w.u32(t.IssuedAt)
	w.u16(uint16(len(t.Grants)))
	for _, g := range t.Grants {
		c, _ := g.Privilege.code()
		w.u16(c)
		w.u32(g.ExpireAt)
	}
	return w.buf, w.err
}

func decodePayload(payload []byte) (*Token, error) {
	r := reader{buf: payload}
	t := &Token{
		AppID:    r.str(),
		Room:     r.str(),
		UserID:   r.str(),
		IssuedAt: r.u32(),
	}
	n := int(r.u16())
	if r.err != nil {
		return nil, ErrMalformed
	}

	t.Grants = make([]Grant, 0, n)
	last := -1
	for k := 0; k < n; k++ {
		c := r.u16()
		exp := r.u32()
		if r.err != nil {
			return nil, ErrMalformed
		}
		p, ok := privilegeFromCode(c)
		if !ok || int(c) <= last {
			return nil, ErrMalformed
		}
		last = int(c)
		t.Grants = append(t.Grants, Grant{Privilege: p, ExpireAt: exp})
	}
	if !r.done() {
		return nil, ErrMalformed
	}
	return t, nil
}

type writer struct {
	buf []byte
	err error
}

func (w *writer) u16(v uint16) { w.buf = binary.LittleEndian.AppendUint16(w.buf, v) }
func (w *writer) u32(v uint32) { w.buf = binary.LittleEndian.AppendUint32(w.buf, v) }

func (w *writer) bytes(b []byte) {
	if len(b) > math.MaxUint16 {
		w.err = ErrFieldTooLong
		return
	}
	w.u16(uint16(len(b)))
	w.buf = append(w.buf, b...)
}

func (w *writer) str(s string) { w.bytes([]byte(s)) }

type reader struct {
	buf []byte
	off int
	err error
}

func (r *reader) take(n int) []byte {
	if r.err != nil {
		return nil
	}
	if len(r.buf)-r.off < n {
		r.err = ErrMalformed
		return nil
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) u16() uint16 {
	b := r.take(2)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint16(b)
}

func (r *reader) u32() uint32 {
	b := r.take(4)
	if b == nil {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

func (r *reader) bytes() []byte { return r.take(int(r.u16())) }
func (r *reader) str() string   { return string(r.bytes()) }
func (r *reader) done() bool    { return r.err == nil && r.off == len(r.buf) }
