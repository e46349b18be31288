package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/goliatone/go-cmdbform/pkg/client"
	"github.com/goliatone/go-cmdbform/pkg/logging"
	"github.com/goliatone/go-cmdbform/pkg/repository"
)

type env struct {
	cfg    *config
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	logger logging.Logger
}

type command struct {
	summary string
	run     func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"validate":  {summary: "check Type documents and optional object payloads", run: runValidate},
	"duplicate": {summary: "copy a Type with regenerated identifiers", run: runDuplicate},
	"render":    {summary: "compile a Type in a mode and render it", run: runRender},
	"fill":      {summary: "fill a create or edit form in the terminal", run: runFill},
	"openapi":   {summary: "export Types as an OpenAPI document", run: runOpenAPI},
	"watch":     {summary: "re-validate a Type document on every change", run: runWatch},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("cmdbform-cli", flag.ContinueOnError)
	global.SetOutput(stderr)
	configPath := global.String("config", "", "YAML config file (api_url, token, timeout, group)")
	apiURL := global.String("api", "", "REST base URL, overrides api_url")
	level := global.String("log-level", "warn", "log level (debug, info, warn, error, off)")
	global.Usage = func() {
		fmt.Fprintf(global.Output(), "Usage: %s [flags] <command> [args]\n\nCommands:\n", filepath.Base(os.Args[0]))
		names := make([]string, 0, len(commands))
		for name := range commands {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(global.Output(), "  %-10s %s\n", name, commands[name].summary)
		}
		fmt.Fprintf(global.Output(), "\nFlags:\n")
		global.PrintDefaults()
	}
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	if *apiURL != "" {
		cfg.apiURL = *apiURL
	}

	name := global.Arg(0)
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		global.Usage()
		return 2
	}
	e := &env{
		cfg:    cfg,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		logger: logging.New("cmdbform", stderr, *level),
	}
	if err := cmd.run(ctx, e, global.Args()[1:]); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		return 1
	}
	return 0
}

// repository returns the cached REST backend, or nil without api_url.
func (e *env) repository() (*repository.Repository, error) {
	if e.cfg.apiURL == "" {
		return nil, nil
	}
	c, err := client.New(e.cfg.apiURL,
		client.WithTimeout(e.cfg.timeout),
		client.WithToken(e.cfg.token),
		client.WithLogger(e.logger),
	)
	if err != nil {
		return nil, err
	}
	return repository.New(c, repository.WithLogger(e.logger)), nil
}

// output writes data to path, or to stdout when path is empty.
func (e *env) output(path string, data []byte) error {
	if path == "" {
		_, err := e.stdout.Write(append(data, '\n'))
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(e.stderr, "written to %s\n", path)
	return nil
}
