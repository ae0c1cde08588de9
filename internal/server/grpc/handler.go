package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/rtcauth/internal/api"
	"github.com/dmitrijs2005/rtcauth/internal/common"
	"github.com/dmitrijs2005/rtcauth/internal/server/convert"
)

// toStatus maps a service error onto a gRPC status. Internal details of
// persistence and upstream failures are not sent to clients.
func toStatus(err error) error {
	switch {
	case errors.Is(err, common.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, common.ErrCodeExpired):
		return status.Error(codes.FailedPrecondition, common.ErrCodeExpired.Error())
	case errors.Is(err, common.ErrVerificationFailed):
		return status.Error(codes.PermissionDenied, common.ErrCodeInvalid.Error())
	case errors.Is(err, common.ErrSessionInvalid):
		return status.Error(codes.Unauthenticated, common.ErrSessionInvalid.Error())
	case errors.Is(err, common.ErrUpstream):
		return status.Error(codes.Unavailable, common.ErrUpstream.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, common.ErrPersistence.Error())
	}
}

func (s *GRPCServer) RequestCode(ctx context.Context, req *api.RequestCodeRequest) (*api.Empty, error) {
	if err := s.auth.RequestCode(ctx, req.Phone); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) VerifyAndLogin(ctx context.Context, req *api.LoginRequest) (*api.LoginResponse, error) {
	result, err := s.auth.VerifyAndLogin(ctx, req.Phone, req.Code)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.Login(result), nil
}

func (s *GRPCServer) GetCapabilityToken(ctx context.Context, req *api.TokenRequest) (*api.TokenResponse, error) {
	token, err := s.auth.ExchangeForCapabilityToken(ctx, sessionToken(ctx, req.LoginToken), req.RoomID, req.Privileges)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.Token(token), nil
}

func (s *GRPCServer) RenameUser(ctx context.Context, req *api.RenameRequest) (*api.UserInfo, error) {
	user, err := s.auth.RenameIdentity(ctx, sessionToken(ctx, req.LoginToken), req.UserName)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.UserInfo(user), nil
}

func (s *GRPCServer) Logout(ctx context.Context, req *api.SessionRequest) (*api.Empty, error) {
	if err := s.auth.Logout(ctx, sessionToken(ctx, req.LoginToken)); err != nil {
		return nil, toStatus(err)
	}
	return &api.Empty{}, nil
}

func (s *GRPCServer) RefreshSession(ctx context.Context, req *api.SessionRequest) (*api.RefreshResponse, error) {
	session, err := s.auth.RefreshSession(ctx, sessionToken(ctx, req.LoginToken))
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.Refresh(session), nil
}

func (s *GRPCServer) GetProfile(ctx context.Context, req *api.SessionRequest) (*api.UserInfo, error) {
	user, err := s.auth.GetProfile(ctx, sessionToken(ctx, req.LoginToken))
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.UserInfo(user), nil
}

func (s *GRPCServer) CreateUploadURL(ctx context.Context, req *api.UploadURLRequest) (*api.UploadURLResponse, error) {
	if s.uploads == nil {
		return nil, status.Error(codes.Unimplemented, "uploads are disabled")
	}
	out, err := s.uploads.CreateUploadURL(ctx, sessionToken(ctx, req.LoginToken), req.FileName)
	if err != nil {
		return nil, toStatus(err)
	}
	return convert.Upload(out), nil
}
