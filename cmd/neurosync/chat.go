// Copyright 2026 © The NeuroSync Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jllopis/neurosync/pkg/agent"
	"github.com/jllopis/neurosync/pkg/chat"
	"github.com/mattn/go-isatty"
)

func runChat(ctx context.Context, a *app, args []string, in io.Reader, out io.Writer) error {
	cmd := flag.NewFlagSet("chat", flag.ContinueOnError)
	prompt := cmd.String("prompt", "", "Single prompt to answer (non-interactive)")
	if err := cmd.Parse(args); err != nil {
		return NewInvalidArgumentError("chat", err.Error())
	}
	if err := a.validate(); err != nil {
		return err
	}

	svc, factory, err := a.service(ctx, nil, nil)
	if err != nil {
		return err
	}
	ag, err := factory()
	if err != nil {
		return err
	}

	if *prompt != "" {
		printOutcome(out, *prompt, svc.Answer(ctx, ag, *prompt), a.json)
		return nil
	}

	r := &repl{
		svc:    svc,
		agent:  ag,
		out:    out,
		json:   a.json,
		prompt: isTerminal(in) && !a.json,
	}
	if r.prompt {
		fmt.Fprintf(out, "NeuroSync (%s, %s)\n", a.cfg.LLM.Provider, a.cfg.LLM.Model)
		fmt.Fprintln(out, "Type /help for commands, 'exit' or Ctrl+C to quit.")
	}
	return r.run(ctx, in)
}

func isTerminal(in io.Reader) bool {
	f, ok := in.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

type repl struct {
	svc    *chat.Service
	agent  *agent.Agent
	out    io.Writer
	json   bool
	prompt bool
}

func (r *repl) run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	for {
		if r.prompt {
			fmt.Fprint(r.out, "\n> ")
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if lower := strings.ToLower(input); lower == "exit" || lower == "quit" {
			return nil
		}
		if strings.HasPrefix(input, "/") {
			if r.command(input) {
				return nil
			}
			continue
		}
		printOutcome(r.out, input, r.svc.Answer(ctx, r.agent, input), r.json)
	}
	return scanner.Err()
}

// command runs a slash command and reports whether the REPL should end.
func (r *repl) command(input string) bool {
	cmd := strings.ToLower(strings.Fields(input)[0])
	switch cmd {
	case "/help":
		fmt.Fprintln(r.out, `Commands:
  /help     Show this help
  /tools    List available tools
  /history  Show the conversation memory
  /facts    Show stored knowledge facts
  /clear    Clear the conversation memory
  /exit     Exit`)

	case "/tools":
		names := r.agent.ToolNames()
		if r.json {
			printJSON(r.out, map[string]any{"tools": names})
			return false
		}
		fmt.Fprintln(r.out, "Available tools:")
		for _, n := range names {
			fmt.Fprintf(r.out, "  - %s\n", n)
		}

	case "/history":
		turns := r.agent.History()
		if r.json {
			printJSON(r.out, map[string]any{"history": turns})
			return false
		}
		if len(turns) == 0 {
			fmt.Fprintln(r.out, "No messages yet.")
		}
		for _, t := range turns {
			fmt.Fprintf(r.out, "%s: %s\n", strings.ToUpper(string(t.Role)), t.Content)
		}

	case "/facts":
		facts := r.agent.Facts()
		if r.json {
			printJSON(r.out, map[string]any{"facts": facts})
			return false
		}
		if len(facts) == 0 {
			fmt.Fprintln(r.out, "No facts stored yet.")
		}
		for _, f := range facts {
			fmt.Fprintf(r.out, "  - %s\n", f)
		}

	case "/clear":
		r.agent.Reset()
		if !r.json {
			fmt.Fprintln(r.out, "Conversation cleared.")
		}

	case "/exit", "/quit":
		return true

	default:
		fmt.Fprintf(r.out, "Unknown command: %s (try /help)\n", cmd)
	}
	return false
}

func printOutcome(out io.Writer, prompt string, o chat.Outcome, asJSON bool) {
	if asJSON {
		printJSON(out, map[string]any{
			"prompt":   prompt,
			"response": o.Text,
			"route":    o.Route,
			"failure":  o.Failure,
			"fallback": o.Fallback,
			"roadmap":  o.Roadmap,
		})
		return
	}
	fmt.Fprintln(out, o.Text)
}
