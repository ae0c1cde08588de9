package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/rtcauth/internal/api"
	"github.com/dmitrijs2005/rtcauth/internal/common"
)

// SessionTokenHeader is the metadata key the server reads the session from.
const SessionTokenHeader = "login_token"

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      api.AuthServiceClient
	health      healthpb.HealthClient

	mu           sync.RWMutex
	sessionToken string
}

// NewGRPCClient connects lazily to endpointURL. Extra dial options are
// appended after the defaults.
func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.init(opts); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) init(extra []grpc.DialOption) error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.sessionTokenInterceptor),
	}, extra...)
	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = api.NewAuthServiceClient(conn)
	s.health = healthpb.NewHealthClient(conn)
	return nil
}

func withSessionToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(SessionTokenHeader, token)
	return metadata.NewOutgoingContext(ctx, md)
}

// sessionTokenInterceptor attaches the current session and forgets it once
// the server reports it as invalid.
func (s *GRPCClient) sessionTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	token := s.SessionToken()
	if token != "" {
		ctx = withSessionToken(ctx, token)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if token != "" && status.Code(err) == codes.Unauthenticated {
		s.mu.Lock()
		if s.sessionToken == token {
			s.sessionToken = ""
		}
		s.mu.Unlock()
	}
	return err
}

func (s *GRPCClient) SessionToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionToken
}

func (s *GRPCClient) SetSessionToken(token string) {
	s.mu.Lock()
	s.sessionToken = token
	s.mu.Unlock()
}

func (s *GRPCClient) requireSession() error {
	if s.SessionToken() == "" {
		return ErrNotLoggedIn
	}
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

func (s *GRPCClient) Ping(ctx context.Context) error {
	resp, err := s.health.Check(ctx, &healthpb.HealthCheckRequest{Service: api.ServiceName})
	if err != nil {
		return mapError(err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return ErrUnavailable
	}
	return nil
}

func (s *GRPCClient) RequestCode(ctx context.Context, phone string) error {
	_, err := s.client.RequestCode(ctx, &api.RequestCodeRequest{Phone: phone})
	return mapError(err)
}

func (s *GRPCClient) Login(ctx context.Context, phone, code string) (*api.LoginResponse, error) {
	resp, err := s.client.VerifyAndLogin(ctx, &api.LoginRequest{Phone: phone, Code: code})
	if err != nil {
		return nil, mapError(err)
	}
	s.SetSessionToken(resp.LoginToken)
	return resp, nil
}

func (s *GRPCClient) CapabilityToken(ctx context.Context, room string, privileges []string) (*api.TokenResponse, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.GetCapabilityToken(ctx, &api.TokenRequest{RoomID: room, Privileges: privileges})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Rename(ctx context.Context, name string) (*api.UserInfo, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.RenameUser(ctx, &api.RenameRequest{UserName: name})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Profile(ctx context.Context) (*api.UserInfo, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.GetProfile(ctx, &api.SessionRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

func (s *GRPCClient) Refresh(ctx context.Context) (*api.RefreshResponse, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.RefreshSession(ctx, &api.SessionRequest{})
	if err != nil {
		return nil, mapError(err)
	}
	s.SetSessionToken(resp.LoginToken)
	return resp, nil
}

func (s *GRPCClient) Logout(ctx context.Context) error {
	if err := s.requireSession(); err != nil {
		return err
	}
	if _, err := s.client.Logout(ctx, &api.SessionRequest{}); err != nil {
		return mapError(err)
	}
	s.SetSessionToken("")
	return nil
}

func (s *GRPCClient) UploadURL(ctx context.Context, fileName string) (*api.UploadURLResponse, error) {
	if err := s.requireSession(); err != nil {
		return nil, err
	}
	resp, err := s.client.CreateUploadURL(ctx, &api.UploadURLRequest{FileName: fileName})
	if err != nil {
		return nil, mapError(err)
	}
	return resp, nil
}

// mapError turns a gRPC status back into the service error kinds.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", common.ErrInvalidRequest, st.Message())
	case codes.FailedPrecondition:
		return common.ErrCodeExpired
	case codes.PermissionDenied:
		return common.ErrCodeInvalid
	case codes.Unauthenticated:
		return common.ErrSessionInvalid
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", common.ErrUpstream, st.Message())
	case codes.DeadlineExceeded:
		return ErrUnavailable
	case codes.Internal:
		return common.ErrPersistence
	default:
		return fmt.Errorf("rpc error: %w", err)
	}
}
