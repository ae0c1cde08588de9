// Package cli implements the rtcauth command-line client: one subcommand per
// API operation plus an interactive shell. The session token from a
// successful login is kept in a file between invocations.
package cli
