package config

import (
	"flag"
	"io"

	"github.com/dmitrijs2005/rtcauth/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
//	-a string   gRPC bind address (e.g. ":50051")
//	-h string   HTTP bind address (e.g. ":8080")
//	-d string   PostgreSQL DSN
//	-r string   Redis address
//	-i string   identity backend
//	-s string   session backend
//	-l string   log level
//	-t duration session TTL
//
// Only these flags are consumed; anything else on the command line is left
// for other parsers.
func parseFlags(config *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-h", "-d", "-r", "-i", "-s", "-l", "-t"})

	fs := flag.NewFlagSet("rtcauth", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&config.GRPCAddr, "a", config.GRPCAddr, "gRPC bind address")
	fs.StringVar(&config.HTTPAddr, "h", config.HTTPAddr, "HTTP bind address")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.RedisAddr, "r", config.RedisAddr, "redis address")
	fs.StringVar(&config.IdentityBackend, "i", config.IdentityBackend, "identity backend (postgres|sqlite|memory)")
	fs.StringVar(&config.SessionBackend, "s", config.SessionBackend, "session backend (redis|postgres|sqlite|memory)")
	fs.StringVar(&config.LogLevel, "l", config.LogLevel, "log level")
	fs.DurationVar(&config.SessionTTL, "t", config.SessionTTL, "session ttl")

	return fs.Parse(args)
}
