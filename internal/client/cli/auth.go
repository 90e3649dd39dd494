package cli

import (
	"context"
	"fmt"
)

// getSimpleText and getPassword are indirections used to facilitate testing.
var (
	getSimpleText = GetSimpleText
	getPassword   = GetPassword
)

// Register prompts for name, email and password, creates the account and
// logs in with it.
func (a *App) Register(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Enter name", a.out)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}

	s, err := a.api.Register(ctx, name, email, password)
	if err != nil {
		return err
	}
	if err := a.remember(s); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Registered and logged in as %s\n", s.User.Email)
	return nil
}

func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", a.out)
	if err != nil {
		return err
	}
	password, err := getPassword(a.reader, a.out)
	if err != nil {
		return err
	}

	s, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.remember(s); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Logged in as %s\n", s.User.Email)
	return nil
}

// Logout forgets the token locally; tokens are stateless on the server.
func (a *App) Logout(_ context.Context) error {
	if err := a.forget(); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Logged out")
	return nil
}

func (a *App) Me(ctx context.Context) error {
	if !a.isLoggedIn() {
		return errNotLoggedIn
	}
	u, err := a.api.Me(ctx)
	if err != nil {
		return a.check(err)
	}
	fmt.Fprintf(a.out, "%s <%s>  id %s\n", u.Name, u.Email, u.ID)
	return nil
}
