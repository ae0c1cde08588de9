package verification

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volcengine/volc-sdk-golang/base"
	"github.com/volcengine/volc-sdk-golang/service/sms"
)

type fakeSMS struct {
	sendReq  *sms.SmsVerifyCodeRequest
	checkReq *sms.CheckSmsVerifyCodeRequest

	sendResp  *sms.SmsResponse
	checkResp *sms.CheckSmsVerifyCodeResponse
	err       error
	block     chan struct{}
}

func (f *fakeSMS) SendVerifyCode(req *sms.SmsVerifyCodeRequest) (*sms.SmsResponse, int, error) {
	f.sendReq = req
	if f.block != nil {
		<-f.block
	}
	return f.sendResp, 200, f.err
}

func (f *fakeSMS) CheckVerifyCode(req *sms.CheckSmsVerifyCodeRequest) (*sms.CheckSmsVerifyCodeResponse, int, error) {
	f.checkReq = req
	if f.block != nil {
		<-f.block
	}
	return f.checkResp, 200, f.err
}

func newTestGateway(t *testing.T, f *fakeSMS) *VolcGateway {
	t.Helper()
	orig := newSMSClient
	newSMSClient = func(ak, sk string) smsAPI {
		assert.Equal(t, "ak", ak)
		assert.Equal(t, "sk", sk)
		return f
	}
	t.Cleanup(func() { newSMSClient = orig })

	return NewVolcGateway(VolcOptions{
		AccessKey:  "ak",
		SecretKey:  "sk",
		Account:    "acct",
		Sign:       "sign",
		TemplateID: "tpl",
		Scene:      "login",
		CodeType:   6,
		CodeExpire: 10 * time.Minute,
		TryCount:   3,
	})
}

func TestVolc_SendCode(t *testing.T) {
	f := &fakeSMS{sendResp: &sms.SmsResponse{}}
	g := newTestGateway(t, f)

	require.NoError(t, g.SendCode(context.Background(), "+8613800000000"))

	require.NotNil(t, f.sendReq)
	assert.Equal(t, "acct", f.sendReq.SmsAccount)
	assert.Equal(t, "sign", f.sendReq.Sign)
	assert.Equal(t, "tpl", f.sendReq.TemplateID)
	assert.Equal(t, "+8613800000000", f.sendReq.PhoneNumber)
	assert.Equal(t, "login", f.sendReq.Scene)
	assert.EqualValues(t, 6, f.sendReq.CodeType)
	assert.EqualValues(t, 600, f.sendReq.ExpireTime)
	assert.EqualValues(t, 3, f.sendReq.TryCount)
}

func TestVolc_SendCode_ProviderError(t *testing.T) {
	resp := &sms.SmsResponse{}
	resp.ResponseMetadata.Error = &base.ErrorObj{Code: "RE:0001", Message: "rate limited"}
	g := newTestGateway(t, &fakeSMS{sendResp: resp})

	err := g.SendCode(context.Background(), "+8613800000000")
	require.ErrorIs(t, err, ErrProvider)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestVolc_SendCode_TransportError(t *testing.T) {
	g := newTestGateway(t, &fakeSMS{err: errors.New("dial tcp: refused")})

	err := g.SendCode(context.Background(), "+8613800000000")
	require.ErrorIs(t, err, ErrProvider)
}

func TestVolc_SendCode_NilResponse(t *testing.T) {
	g := newTestGateway(t, &fakeSMS{})

	err := g.SendCode(context.Background(), "+8613800000000")
	require.ErrorIs(t, err, ErrProvider)
}

func TestVolc_SendCode_ContextDeadline(t *testing.T) {
	f := &fakeSMS{sendResp: &sms.SmsResponse{}, block: make(chan struct{})}
	defer close(f.block)
	g := newTestGateway(t, f)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := g.SendCode(ctx, "+8613800000000")
	require.ErrorIs(t, err, ErrProvider)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestVolc_CheckCode(t *testing.T) {
	tests := []struct {
		name    string
		result  string
		want    Outcome
		wantErr bool
	}{
		{name: "valid", result: "0", want: Valid},
		{name: "invalid", result: "1", want: InvalidCode},
		{name: "expired", result: "2", want: ExpiredCode},
		{name: "unknown", result: "9", want: InvalidCode, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &fakeSMS{checkResp: &sms.CheckSmsVerifyCodeResponse{Result: tt.result}}
			g := newTestGateway(t, f)

			got, err := g.CheckCode(context.Background(), "+8613800000000", "123456")
			if tt.wantErr {
				require.ErrorIs(t, err, ErrProvider)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)

			assert.Equal(t, "acct", f.checkReq.SmsAccount)
			assert.Equal(t, "login", f.checkReq.Scene)
			assert.Equal(t, "123456", f.checkReq.Code)
		})
	}
}

func TestVolc_CheckCode_ProviderError(t *testing.T) {
	resp := &sms.CheckSmsVerifyCodeResponse{Result: "0"}
	resp.ResponseMetadata.Error = &base.ErrorObj{Code: "InvalidAccessKey", Message: "bad key"}
	g := newTestGateway(t, &fakeSMS{checkResp: resp})

	_, err := g.CheckCode(context.Background(), "+8613800000000", "123456")
	require.ErrorIs(t, err, ErrProvider)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "valid", Valid.String())
	assert.Equal(t, "invalid_code", InvalidCode.String())
	assert.Equal(t, "expired_code", ExpiredCode.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestErrProviderIsUpstream(t *testing.T) {
	assert.ErrorIs(t, ErrProvider, common.ErrUpstream)
}
