package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/netx"
	"github.com/dmitrijs2005/rtcauth/internal/server/auth"
	"github.com/dmitrijs2005/rtcauth/internal/server/captoken"
)

func newFlagSet(a *App, name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(a.out)
	return fs
}

func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", ErrUsage, err)
	}
	return nil
}

// phoneArg reads --phone or prompts for it.
func (a *App) phoneArg(phone string) (string, error) {
	if phone != "" {
		return phone, nil
	}
	return GetSimpleText(a.reader, "Enter phone number:", a.out)
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func cmdRequestCode(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "request-code")
	phone := fs.StringP("phone", "p", "", "phone number in E.164 form")
	if err := parse(fs, args); err != nil {
		return err
	}

	p, err := a.phoneArg(*phone)
	if err != nil {
		return err
	}
	if err := a.client.RequestCode(ctx, p); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Code sent.")
	return nil
}

// cmdLogin sends a code unless --code is given, then prompts for it.
func cmdLogin(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "login")
	phone := fs.StringP("phone", "p", "", "phone number in E.164 form")
	code := fs.String("code", "", "SMS code already received")
	if err := parse(fs, args); err != nil {
		return err
	}

	p, err := a.phoneArg(*phone)
	if err != nil {
		return err
	}

	c := *code
	if c == "" {
		if err := a.client.RequestCode(ctx, p); err != nil {
			return err
		}
		if c, err = GetCode(a.reader, a.out); err != nil {
			return err
		}
	}

	resp, err := a.client.Login(ctx, p, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Logged in as %s (%s), session valid until %s\n",
		resp.UserID, resp.UserName, time.Unix(resp.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func cmdToken(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "token")
	room := fs.StringP("room", "r", "", "room id (empty for any room)")
	privs := fs.StringSlice("privilege", nil, "privilege to grant, repeatable (publish-stream, subscribe-stream)")
	if err := parse(fs, args); err != nil {
		return err
	}

	resp, err := a.client.CapabilityToken(ctx, *room, *privs)
	if err != nil {
		return err
	}
	return a.printJSON(resp)
}

func cmdRename(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "rename")
	name := fs.StringP("name", "n", "", "new display name")
	if err := parse(fs, args); err != nil {
		return err
	}

	n := *name
	if n == "" {
		var err error
		if n, err = GetSimpleText(a.reader, "Enter new name:", a.out); err != nil {
			return err
		}
	}

	info, err := a.client.Rename(ctx, n)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Name changed to %q\n", info.UserName)
	return nil
}

func cmdProfile(ctx context.Context, a *App, args []string) error {
	if err := parse(newFlagSet(a, "profile"), args); err != nil {
		return err
	}
	info, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	return a.printJSON(info)
}

func cmdRefresh(ctx context.Context, a *App, args []string) error {
	if err := parse(newFlagSet(a, "refresh"), args); err != nil {
		return err
	}
	resp, err := a.client.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Session valid until %s\n", time.Unix(resp.ExpiresAt, 0).Format(time.RFC3339))
	return nil
}

func cmdLogout(ctx context.Context, a *App, args []string) error {
	if err := parse(newFlagSet(a, "logout"), args); err != nil {
		return err
	}
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out.")
	return nil
}

func cmdUpload(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "upload")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: upload <file>", ErrUsage)
	}
	path := fs.Arg(0)

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	out, err := a.client.UploadURL(ctx, name)
	if err != nil {
		return err
	}
	if err := netx.UploadToS3PresignedURL(ctx, out.URL, data, mime.TypeByExtension(filepath.Ext(name))); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Uploaded %s as %s\n", name, out.Key)
	return nil
}

func cmdPing(ctx context.Context, a *App, args []string) error {
	if err := a.client.Ping(ctx); err != nil {
		return errors.Join(errors.New("server not serving"), err)
	}
	fmt.Fprintln(a.out, "OK")
	return nil
}

// cmdVerify checks a capability token offline against the app key, the way
// the media service would.
func cmdVerify(ctx context.Context, a *App, args []string) error {
	fs := newFlagSet(a, "verify")
	room := fs.StringP("room", "r", "", "also require the token to cover this room")
	signature := fs.StringP("signature", "s", "", "also check the server signature returned with the token")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: verify [--signature <jwt>] <token>", ErrUsage)
	}

	key, err := GetSecret(a.reader, "Enter app key:", a.out)
	if err != nil {
		return err
	}

	tok, err := captoken.Verify(fs.Arg(0), key)
	if err != nil {
		return err
	}
	if *room != "" && !tok.AppliesTo(*room) {
		return fmt.Errorf("token is scoped to room %q", tok.Room)
	}

	var claims *auth.Claims
	if *signature != "" {
		secret, err := GetSecret(a.reader, "Enter signature secret:", a.out)
		if err != nil {
			return err
		}
		claims, err = auth.ParseSignature(*signature, []byte(secret))
		if err != nil {
			return fmt.Errorf("server signature: %w", err)
		}
		if claims.UserID != tok.UserID || claims.AppID != tok.AppID || claims.Room != tok.Room {
			return fmt.Errorf("%w: server signature is for user %s, app %s, room %s",
				common.ErrInvalidToken, claims.UserID, claims.AppID, claims.Room)
		}
	}

	now := time.Now()
	fmt.Fprintf(a.out, "Valid token for app %s, room %s, user %s, issued %s\n",
		tok.AppID, tok.Room, tok.UserID, time.Unix(int64(tok.IssuedAt), 0).Format(time.RFC3339))
	for _, g := range tok.Grants {
		state := "active"
		if !tok.Allows(g.Privilege, now) {
			state = "expired"
		}
		expiry := "never"
		if g.ExpireAt != 0 {
			expiry = time.Unix(int64(g.ExpireAt), 0).Format(time.RFC3339)
		}
		fmt.Fprintf(a.out, "  %-17s expires %s (%s)\n", g.Privilege, expiry, state)
	}
	switch {
	case claims == nil:
	case claims.ExpiresAt != nil:
		fmt.Fprintf(a.out, "Server signature valid until %s\n", claims.ExpiresAt.Time.Format(time.RFC3339))
	default:
		fmt.Fprintln(a.out, "Server signature valid")
	}
	return nil
}
