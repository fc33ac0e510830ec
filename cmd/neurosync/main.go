package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	ConfigPath string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(NewInvalidArgumentError("flags", err.Error()), false)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}

	switch args[0] {
	case "help":
		printUsage(os.Stdout)
		return
	case "version":
		printVersion(os.Stdout, global.JSON)
		return
	}

	a, err := newApp(global, os.Stderr)
	if err != nil {
		fatal(err, global.JSON)
	}
	defer a.Close()

	switch args[0] {
	case "serve":
		err = runServe(ctx, a, args[1:])
	case "chat":
		err = runChat(ctx, a, args[1:], os.Stdin, os.Stdout)
	case "mcp":
		err = runMCP(ctx, a, args[1:])
	case "user":
		err = runUser(ctx, a, args[1:], os.Stdout)
	default:
		err = NewInvalidArgumentError(args[0], fmt.Sprintf("unknown command %q", args[0]))
	}
	if err != nil {
		a.Close()
		fatal(err, global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--set" || arg == "--profile":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			if arg == "--config" {
				flags.ConfigPath = args[i+1]
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigPath = strings.TrimPrefix(arg, "--config=")
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case strings.HasPrefix(arg, "--set="), strings.HasPrefix(arg, "--profile="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func printJSON(w io.Writer, value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fmt.Fprintf(w, "{\"error\":%q}\n", err.Error())
		return
	}
	fmt.Fprintln(w, string(payload))
}

func printVersion(w io.Writer, asJSON bool) {
	if asJSON {
		printJSON(w, map[string]string{"version": version})
		return
	}
	fmt.Fprintln(w, version)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `NeuroSync, a conversational assistant with tools.

Usage:
  neurosync [global flags] <command> [args]

Global flags:
  --config <path>      Path to config.yaml
  --profile <name>     Also load config.<name>.yaml next to --config
  --set key=value      Override config (repeatable)
  --json               JSON output

Commands:
  serve [--addr :8080]                   Run the HTTP API
  chat [--prompt <text>]                 Chat in the terminal (or answer one prompt)
  mcp                                    Serve Web Search, Wikipedia and Calculator over MCP stdio
  user add --username U --password P --email E [--name N]
  version
  help`)
}

func fatal(err error, asJSON bool) {
	printError(os.Stderr, err, asJSON)
	os.Exit(1)
}
