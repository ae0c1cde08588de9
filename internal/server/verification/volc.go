package verification

import (
	"context"
	"fmt"
	"time"

	"github.com/volcengine/volc-sdk-golang/base"
	"github.com/volcengine/volc-sdk-golang/service/sms"
)

// Result values of CheckSmsVerifyCode.
const (
	volcResultValid   = "0"
	volcResultInvalid = "1"
	volcResultExpired = "2"
)

// VolcOptions are the provider-side parameters of every request.
type VolcOptions struct {
	AccessKey  string
	SecretKey  string
	Account    string
	Sign       string
	TemplateID string
	Scene      string
	CodeType   int
	CodeExpire time.Duration
	TryCount   int
}

// smsAPI is the slice of the Volcengine SMS client we call.
type smsAPI interface {
	SendVerifyCode(req *sms.SmsVerifyCodeRequest) (*sms.SmsResponse, int, error)
	CheckVerifyCode(req *sms.CheckSmsVerifyCodeRequest) (*sms.CheckSmsVerifyCodeResponse, int, error)
}

// newSMSClient is a seam for tests.
var newSMSClient = func(ak, sk string) smsAPI {
	instance := sms.NewInstance()
	instance.Client.SetAccessKey(ak)
	instance.Client.SetSecretKey(sk)
	return instance
}

// VolcGateway talks to Volcengine's verify-code API.
type VolcGateway struct {
	api  smsAPI
	opts VolcOptions
}

func NewVolcGateway(opts VolcOptions) *VolcGateway {
	return &VolcGateway{api: newSMSClient(opts.AccessKey, opts.SecretKey), opts: opts}
}

func (g *VolcGateway) SendCode(ctx context.Context, phone string) error {
	req := &sms.SmsVerifyCodeRequest{
		SmsAccount:  g.opts.Account,
		Sign:        g.opts.Sign,
		TemplateID:  g.opts.TemplateID,
		PhoneNumber: phone,
		Scene:       g.opts.Scene,
		CodeType:    int32(g.opts.CodeType),
		ExpireTime:  int32(g.opts.CodeExpire / time.Second),
		TryCount:    int32(g.opts.TryCount),
	}

	resp, err := call(ctx, func() (*sms.SmsResponse, error) {
		r, _, err := g.api.SendVerifyCode(req)
		return r, err
	})
	if err != nil {
		return err
	}
	return metadataError(&resp.ResponseMetadata)
}

func (g *VolcGateway) CheckCode(ctx context.Context, phone, code string) (Outcome, error) {
	req := &sms.CheckSmsVerifyCodeRequest{
		SmsAccount:  g.opts.Account,
		PhoneNumber: phone,
		Scene:       g.opts.Scene,
		Code:        code,
	}

	resp, err := call(ctx, func() (*sms.CheckSmsVerifyCodeResponse, error) {
		r, _, err := g.api.CheckVerifyCode(req)
		return r, err
	})
	if err != nil {
		return InvalidCode, err
	}
	if err := metadataError(&resp.ResponseMetadata); err != nil {
		return InvalidCode, err
	}

	switch resp.Result {
	case volcResultValid:
		return Valid, nil
	case volcResultInvalid:
		return InvalidCode, nil
	case volcResultExpired:
		return ExpiredCode, nil
	default:
		return InvalidCode, fmt.Errorf("%w: unexpected result %q", ErrProvider, resp.Result)
	}
}

// call runs fn, which does not take a context, and gives up when ctx ends.
// The abandoned request finishes in the background.
func call[T any](ctx context.Context, fn func() (*T, error)) (*T, error) {
	type result struct {
		v   *T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %w", ErrProvider, ctx.Err())
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("%w: %w", ErrProvider, r.err)
		}
		if r.v == nil {
			return nil, fmt.Errorf("%w: empty response", ErrProvider)
		}
		return r.v, nil
	}
}

func metadataError(md *base.ResponseMetadata) error {
	if md == nil || md.Error == nil || (md.Error.Code == "" && md.Error.Message == "") {
		return nil
	}
	return fmt.Errorf("%w: %s: %s", ErrProvider, md.Error.Code, md.Error.Message)
}
