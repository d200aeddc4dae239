package console

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// Exit wraps a formatted message in an error carrying the process exit code.
func Exit(code int, msg string, args ...any) cli.ExitCoder {
	return cli.Exit(fmt.Sprintf(msg, args...), code)
}
