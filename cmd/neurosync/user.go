package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/jllopis/neurosync/pkg/auth"
)

func runUser(ctx context.Context, a *app, args []string, out io.Writer) error {
	if len(args) == 0 || args[0] != "add" {
		return NewInvalidArgumentError("user", "usage: neurosync user add --username U --password P --email E")
	}
	cmd := flag.NewFlagSet("user add", flag.ContinueOnError)
	username := cmd.String("username", "", "Username")
	password := cmd.String("password", "", "Password")
	email := cmd.String("email", "", "Email address")
	name := cmd.String("name", "", "Full name")
	if err := cmd.Parse(args[1:]); err != nil {
		return NewInvalidArgumentError("user add", err.Error())
	}

	users, err := a.userStore(ctx)
	if err != nil {
		return err
	}
	res, err := users.Register(ctx, *username, *password, *email, *name)
	if err != nil {
		return err
	}
	if !res.OK {
		if res.Message == auth.MsgMissingFields {
			return NewInvalidArgumentError("user add", res.Message)
		}
		return NewRegistrationError(res.Message)
	}
	if a.json {
		printJSON(out, res)
		return nil
	}
	fmt.Fprintln(out, res.Message)
	return nil
}
