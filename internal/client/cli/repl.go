package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Me(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Add(ctx context.Context) error
	Show(ctx context.Context, args []string) error
	Edit(ctx context.Context, args []string) error
	Done(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	Stats(ctx context.Context) error
	Export(ctx context.Context, args []string) error
}

// runREPL reads commands line by line from in and dispatches them to a.
// The loop ends on EOF, on "exit"/"quit", or when ctx is cancelled.
//
//	Not logged in:
//	  help, register, login, exit
//
//	Logged in:
//	  help, me, list [status=..] [priority=..] [search=..] [sort=..],
//	  add, show <id>, edit <id>, done <id>, delete <id>, stats, export [dir],
//	  logout, exit
//
// Command errors are printed and the loop carries on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, in *bufio.Reader, out io.Writer) {
	for {
		if ctx.Err() != nil {
			return
		}
		fmt.Fprintf(out, "tk%s> ", statusFn())
		line, err := readLine(in)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Fprintln(out, "Available commands: me, (l)ist [key=value..], add, show <id>, edit <id>, done <id>, delete <id>, stats, export [dir], logout, exit")
			} else {
				fmt.Fprintln(out, "Available commands: register, login, exit")
			}
		case "register":
			cmdErr = a.Register(ctx)
		case "login":
			cmdErr = a.Login(ctx)
		case "logout":
			cmdErr = a.Logout(ctx)
		case "me":
			cmdErr = a.Me(ctx)
		case "l", "list":
			cmdErr = a.List(ctx, args)
		case "add":
			cmdErr = a.Add(ctx)
		case "show":
			cmdErr = a.Show(ctx, args)
		case "edit":
			cmdErr = a.Edit(ctx, args)
		case "done":
			cmdErr = a.Done(ctx, args)
		case "delete", "rm":
			cmdErr = a.Delete(ctx, args)
		case "stats":
			cmdErr = a.Stats(ctx)
		case "export":
			cmdErr = a.Export(ctx, args)
		case "exit", "quit":
			fmt.Fprintln(out, "Bye!")
			return
		default:
			fmt.Fprintln(out, "Unknown command:", cmd)
		}

		if cmdErr != nil {
			fmt.Fprintln(out, "Error:", describe(cmdErr))
		}
	}
}

// describe shortens transport errors for display.
func describe(err error) string {
	var apiErr *client.APIError
	switch {
	case errors.As(err, &apiErr) && apiErr.Message != "":
		return apiErr.Message
	case errors.Is(err, client.ErrNotFound):
		return "task not found"
	case errors.Is(err, client.ErrUnavailable):
		return "server unavailable, try again later"
	}
	return err.Error()
}
