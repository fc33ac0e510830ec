package main

import (
	"context"
	"flag"

	"github.com/jllopis/neurosync/pkg/mcp"
	"github.com/jllopis/neurosync/pkg/tools"
)

// runMCP serves the stateless tools on stdin/stdout. Logs go to stderr so
// they never mix with the protocol stream.
func runMCP(_ context.Context, a *app, args []string) error {
	cmd := flag.NewFlagSet("mcp", flag.ContinueOnError)
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("mcp", err.Error())
	}

	web, wiki := a.searchClients()
	registry, err := tools.Stateless(tools.Deps{Web: web, Encyclopedia: wiki, Logger: a.log})
	if err != nil {
		return err
	}
	a.log.Info("mcp.serve", "tools", registry.Names())
	return mcp.NewServer(serviceName, version, registry, a.log).ServeStdio()
}
