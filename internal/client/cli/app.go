// Package cli provides the interactive taskkeeper command-line client.
//
// It wires configuration, the REST client and the saved session into a REPL.
// A session saved by an earlier run is picked up on start, so users stay
// logged in until they log out or the token expires.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/taskkeeper/internal/client/client"
	"github.com/dmitrijs2005/taskkeeper/internal/client/config"
	"github.com/dmitrijs2005/taskkeeper/internal/client/models"
	"github.com/dmitrijs2005/taskkeeper/internal/client/session"
)

var errNotLoggedIn = errors.New("not logged in, use 'login' or 'register'")

// API is the server surface the CLI uses.
type API interface {
	SetToken(token string)
	Ping(ctx context.Context) error
	Register(ctx context.Context, name, email, password string) (*models.Session, error)
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Me(ctx context.Context) (*models.User, error)
	ListTasks(ctx context.Context, o models.ListOptions) ([]models.Task, error)
	GetTask(ctx context.Context, id string) (*models.Task, error)
	CreateTask(ctx context.Context, in models.TaskInput) (*models.Task, error)
	UpdateTask(ctx context.Context, id string, u models.TaskUpdate) (*models.Task, error)
	DeleteTask(ctx context.Context, id string) error
	Stats(ctx context.Context) (*models.Stats, error)
	Export(ctx context.Context) (*models.ExportLink, error)
}

// SessionStore persists the login between runs.
type SessionStore interface {
	Save(s *models.Session) error
	Load() (*models.Session, error)
	Clear() error
}

type App struct {
	api    API
	store  SessionStore
	reader *bufio.Reader
	out    io.Writer
	user   *models.User
}

// NewApp builds the CLI from c, reading commands from stdin.
func NewApp(c *config.Config) *App {
	return newApp(client.New(c.ServerURL, c.RequestTimeout), session.NewStore(c.SessionFile), os.Stdin, os.Stdout)
}

func newApp(api API, store SessionStore, in io.Reader, out io.Writer) *App {
	return &App{api: api, store: store, reader: bufio.NewReader(in), out: out}
}

// Run restores any saved session and runs the REPL until exit or EOF.
func (a *App) Run(ctx context.Context) {
	fmt.Fprintln(a.out, "Welcome to taskkeeper CLI (type 'help' for commands)")

	if err := a.api.Ping(ctx); err != nil {
		fmt.Fprintln(a.out, "Warning:", err)
	}
	a.restore()

	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) restore() {
	s, err := a.store.Load()
	if err != nil {
		if !errors.Is(err, session.ErrNoSession) {
			fmt.Fprintln(a.out, "Warning:", err)
		}
		return
	}
	a.api.SetToken(s.Token)
	a.user = &s.User
}

func (a *App) isLoggedIn() bool {
	return a.user != nil
}

func (a *App) status() string {
	if a.user == nil {
		return ""
	}
	return "(" + a.user.Email + ")"
}

// remember adopts s as the current session and saves it.
func (a *App) remember(s *models.Session) error {
	a.api.SetToken(s.Token)
	a.user = &s.User
	return a.store.Save(s)
}

func (a *App) forget() error {
	a.api.SetToken("")
	a.user = nil
	return a.store.Clear()
}

// check turns a rejected token into a logout.
func (a *App) check(err error) error {
	if errors.Is(err, client.ErrUnauthorized) && a.isLoggedIn() {
		_ = a.forget()
		return errors.New("session expired, please log in again")
	}
	return err
}
