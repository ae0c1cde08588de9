package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Shell reads commands line by line until exit or EOF. Errors are printed
// and do not end the session.
func (a *App) Shell(ctx context.Context) error {
	fmt.Fprintln(a.out, "rtcauth shell (type 'help' for commands)")

	for {
		fmt.Fprint(a.out, "rtc> ")
		line, err := a.reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return err
		}

		parts := strings.Fields(line)
		if len(parts) > 0 {
			switch parts[0] {
			case "exit", "quit":
				fmt.Fprintln(a.out, "Bye!")
				return nil
			case "help":
				fmt.Fprintln(a.out, "Available commands: request-code, login, token, rename, profile, refresh, logout, upload, ping, verify, exit")
			default:
				if cmdErr := a.dispatch(ctx, parts[0], parts[1:]); cmdErr != nil {
					fmt.Fprintln(a.out, "error:", cmdErr)
				}
			}
		}

		if errors.Is(err, io.EOF) {
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
