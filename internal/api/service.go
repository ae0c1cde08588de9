package api

import (
	"context"

	"google.golang.org/grpc"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rtcauth.v1.AuthService"

const (
	MethodRequestCode        = "RequestCode"
	MethodVerifyAndLogin     = "VerifyAndLogin"
	MethodGetCapabilityToken = "GetCapabilityToken"
	MethodRenameUser         = "RenameUser"
	MethodLogout             = "Logout"
	MethodRefreshSession     = "RefreshSession"
	MethodGetProfile         = "GetProfile"
	MethodCreateUploadURL    = "CreateUploadURL"
)

// FullMethod returns the "/service/method" path of a method name.
func FullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// AuthServiceServer is the server API for the auth service.
type AuthServiceServer interface {
	RequestCode(context.Context, *RequestCodeRequest) (*Empty, error)
	VerifyAndLogin(context.Context, *LoginRequest) (*LoginResponse, error)
	GetCapabilityToken(context.Context, *TokenRequest) (*TokenResponse, error)
	RenameUser(context.Context, *RenameRequest) (*UserInfo, error)
	Logout(context.Context, *SessionRequest) (*Empty, error)
	RefreshSession(context.Context, *SessionRequest) (*RefreshResponse, error)
	GetProfile(context.Context, *SessionRequest) (*UserInfo, error)
	CreateUploadURL(context.Context, *UploadURLRequest) (*UploadURLResponse, error)
}

// RegisterAuthServiceServer attaches srv to s.
func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&AuthServiceDesc, srv)
}

// unary builds a MethodDesc that decodes Req and dispatches to call,
// honouring any server interceptor.
func unary[Req any, Resp any](name string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(AuthServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*Req))
			})
		},
	}
}

// AuthServiceDesc describes the auth service for grpc.Server.
var AuthServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRequestCode, AuthServiceServer.RequestCode),
		unary(MethodVerifyAndLogin, AuthServiceServer.VerifyAndLogin),
		unary(MethodGetCapabilityToken, AuthServiceServer.GetCapabilityToken),
		unary(MethodRenameUser, AuthServiceServer.RenameUser),
		unary(MethodLogout, AuthServiceServer.Logout),
		unary(MethodRefreshSession, AuthServiceServer.RefreshSession),
		unary(MethodGetProfile, AuthServiceServer.GetProfile),
		unary(MethodCreateUploadURL, AuthServiceServer.CreateUploadURL),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rtcauth/v1/auth.json",
}

// AuthServiceClient is the client API for the auth service.
type AuthServiceClient interface {
	RequestCode(ctx context.Context, in *RequestCodeRequest, opts ...grpc.CallOption) (*Empty, error)
	VerifyAndLogin(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error)
	GetCapabilityToken(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*TokenResponse, error)
	RenameUser(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*UserInfo, error)
	Logout(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Empty, error)
	RefreshSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*RefreshResponse, error)
	GetProfile(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*UserInfo, error)
	CreateUploadURL(ctx context.Context, in *UploadURLRequest, opts ...grpc.CallOption) (*UploadURLResponse, error)
}

type authServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAuthServiceClient returns a client speaking the JSON codec over cc.
func NewAuthServiceClient(cc grpc.ClientConnInterface) AuthServiceClient {
	return &authServiceClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, name string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, FullMethod(name), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *authServiceClient) RequestCode(ctx context.Context, in *RequestCodeRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodRequestCode, in, opts)
}

func (c *authServiceClient) VerifyAndLogin(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*LoginResponse, error) {
	return invoke[LoginResponse](ctx, c.cc, MethodVerifyAndLogin, in, opts)
}

func (c *authServiceClient) GetCapabilityToken(ctx context.Context, in *TokenRequest, opts ...grpc.CallOption) (*TokenResponse, error) {
	return invoke[TokenResponse](ctx, c.cc, MethodGetCapabilityToken, in, opts)
}

func (c *authServiceClient) RenameUser(ctx context.Context, in *RenameRequest, opts ...grpc.CallOption) (*UserInfo, error) {
	return invoke[UserInfo](ctx, c.cc, MethodRenameUser, in, opts)
}

func (c *authServiceClient) Logout(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c.cc, MethodLogout, in, opts)
}

func (c *authServiceClient) RefreshSession(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*RefreshResponse, error) {
	return invoke[RefreshResponse](ctx, c.cc, MethodRefreshSession, in, opts)
}

func (c *authServiceClient) GetProfile(ctx context.Context, in *SessionRequest, opts ...grpc.CallOption) (*UserInfo, error) {
	return invoke[UserInfo](ctx, c.cc, MethodGetProfile, in, opts)
}

func (c *authServiceClient) CreateUploadURL(ctx context.Context, in *UploadURLRequest, opts ...grpc.CallOption) (*UploadURLResponse, error) {
	return invoke[UploadURLResponse](ctx, c.cc, MethodCreateUploadURL, in, opts)
}
