package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codemate/pkg/app"
	"codemate/pkg/config"
	"codemate/pkg/ui"
	"codemate/pkg/version"
)

const usage = `Usage: codemate [-config path] <command> [flags]

Commands:
  complete         Inline suggestion at a file position
  run <command>    Run an assistant command on a file or selection
  chat             Interactive chat on stdin
  commands         List assistant commands
  test-connection  Probe the configured provider
  models           List models for the configured provider
  use <provider>   Switch provider (openai, gemini, local)
  status           Show the status line
  version          Print version information
`

type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	render *ui.Renderer
	dir    string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dir, _ := os.Getwd()
	c := &cli{
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
		render: ui.NewRenderer(os.Stdout),
		dir:    dir,
	}
	os.Exit(c.run(ctx, os.Args[1:]))
}

func (c *cli) run(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("codemate", flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	fs.Usage = func() { fmt.Fprint(c.stderr, usage) }
	configPath := fs.String("config", config.GetConfigPath(), "path to config file (.json or .toml)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return 2
	}
	name, rest := rest[0], rest[1:]

	switch name {
	case "version":
		fmt.Fprintln(c.stdout, version.Info("codemate"))
		return 0
	case "help", "-h", "--help":
		fmt.Fprint(c.stdout, usage)
		return 0
	}

	a, err := app.Load(*configPath)
	if err != nil {
		fmt.Fprintln(c.stderr, c.render.Error(err.Error()))
		return 1
	}
	defer a.Close()

	var cmdErr error
	switch name {
	case "complete":
		cmdErr = c.complete(ctx, a, rest)
	case "run":
		cmdErr = c.runCommand(ctx, a, rest)
	case "chat":
		cmdErr = c.chat(ctx, a, rest)
	case "commands":
		fmt.Fprint(c.stdout, c.render.CommandList(a.Dispatcher().Handlers()))
	case "test-connection":
		cmdErr = c.testConnection(ctx, a)
	case "models":
		cmdErr = c.models(ctx, a)
	case "use":
		cmdErr = c.use(a, rest)
	case "status":
		fmt.Fprintln(c.stdout, c.render.StatusLine(c.status(a, "")))
	default:
		fmt.Fprintf(c.stderr, "unknown command: %s\n\n%s", name, usage)
		return 2
	}

	if cmdErr != nil {
		if errors.Is(cmdErr, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(c.stderr, c.render.Error(cmdErr.Error()))
		return 1
	}
	return 0
}
