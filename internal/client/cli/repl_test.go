package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/stretchr/testify/assert"
)

type fakeExec struct {
	loggedIn bool
	err      error

	calls []string
}

func (f *fakeExec) record(name string, args ...string) error {
	f.calls = append(f.calls, strings.TrimSpace(name+" "+strings.Join(args, " ")))
	return f.err
}

func (f *fakeExec) isLoggedIn() bool { return f.loggedIn }
func (f *fakeExec) Register(context.Context) error {
	return f.record("register")
}
func (f *fakeExec) Login(context.Context) error {
	f.loggedIn = true
	return f.record("login")
}
func (f *fakeExec) Logout(context.Context) error {
	f.loggedIn = false
	return f.record("logout")
}
func (f *fakeExec) Me(context.Context) error                     { return f.record("me") }
func (f *fakeExec) List(_ context.Context, a []string) error     { return f.record("list", a...) }
func (f *fakeExec) Add(context.Context) error                    { return f.record("add") }
func (f *fakeExec) Show(_ context.Context, a []string) error     { return f.record("show", a...) }
func (f *fakeExec) Edit(_ context.Context, a []string) error     { return f.record("edit", a...) }
func (f *fakeExec) Done(_ context.Context, a []string) error     { return f.record("done", a...) }
func (f *fakeExec) Delete(_ context.Context, a []string) error   { return f.record("delete", a...) }
func (f *fakeExec) Stats(context.Context) error                  { return f.record("stats") }
func (f *fakeExec) Export(_ context.Context, a []string) error   { return f.record("export", a...) }

func TestRunREPL_Dispatch(t *testing.T) {
	input := strings.Join([]string{
		"help",
		"login",
		"help",
		"",
		"list status=pending sort=priority",
		"l",
		"add",
		"show 123",
		"edit 123",
		"done 123",
		"rm 123",
		"stats",
		"export",
		"export out",
		"me",
		"foobar",
		"logout",
		"exit",
		"list",
	}, "\n")

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "(s)" }, rdr(input), &out)

	assert.Equal(t, []string{
		"login", "list status=pending sort=priority", "list", "add", "show 123", "edit 123",
		"done 123", "delete 123", "stats", "export", "export out", "me", "logout",
	}, exec.calls)
	assert.Contains(t, out.String(), "Available commands: register, login, exit")
	assert.Contains(t, out.String(), "Available commands: me,")
	assert.Contains(t, out.String(), "Unknown command: foobar")
	assert.Contains(t, out.String(), "tk(s)> ")
	assert.True(t, strings.HasSuffix(out.String(), "Bye!\n"))
}

func TestRunREPL_PrintsErrorsAndContinues(t *testing.T) {
	exec := &fakeExec{loggedIn: true, err: &client.APIError{Status: 400, Message: "title is required"}}
	var out bytes.Buffer
	runREPL(context.Background(), exec, func() string { return "" }, rdr("add\nstats\n"), &out)

	assert.Equal(t, []string{"add", "stats"}, exec.calls)
	assert.Equal(t, 2, strings.Count(out.String(), "Error: title is required"))
}

func TestRunREPL_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := &fakeExec{}
	var out bytes.Buffer
	runREPL(ctx, exec, func() string { return "" }, rdr("login\n"), &out)
	assert.Empty(t, exec.calls)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "task not found", describe(fmt.Errorf("%w: x", client.ErrNotFound)))
	assert.Equal(t, "server unavailable, try again later", describe(fmt.Errorf("%w: dial", client.ErrUnavailable)))
	assert.Equal(t, "conflict", describe(&client.APIError{Status: 409, Message: "conflict"}))
	assert.Equal(t, "server returned 500", describe(&client.APIError{Status: 500}))
	assert.Equal(t, "plain", describe(errors.New("plain")))
}
