// Package client talks to the rtcauth gRPC API.
//
// GRPCClient holds the session token returned by login, attaches it to
// every call through a unary interceptor, and maps gRPC status codes back
// onto the sentinel errors in internal/common so callers can use errors.Is
// exactly as they would against the service itself.
package client
