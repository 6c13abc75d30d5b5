// Command casectl validates case definition files and replays transition
// scripts against them.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/goliatone/go-cmmn/execution"
)

type cli struct {
	LogLevel string `name:"log-level" help:"Log level for engine output." default:"warn" enum:"trace,debug,info,warn,error"`
	LogJSON  bool   `name:"log-json" help:"Emit engine logs as JSON."`
}

// appContext is bound into every command Run method.
type appContext struct {
	ctx    context.Context
	out    io.Writer
	logger execution.Logger
}

type cliConfig struct {
	Name        string
	Description string
	Group       string
	Aliases     []string
	Hidden      bool
}

func (opts cliConfig) buildTags() []string {
	var tags []string
	if len(opts.Aliases) > 0 {
		tags = append(tags, fmt.Sprintf(`aliases:"%s"`, strings.Join(opts.Aliases, ",")))
	}
	if opts.Hidden {
		tags = append(tags, `hidden:""`)
	}
	return tags
}

type cliCommand interface {
	CLIOptions() cliConfig
}

func commands() []cliCommand {
	return []cliCommand{
		&validateCmd{},
		&runCmd{},
		&statesCmd{},
	}
}

func cliOptions(cmds []cliCommand) []kong.Option {
	options := make([]kong.Option, 0, len(cmds))
	for _, cmd := range cmds {
		opts := cmd.CLIOptions()
		options = append(options, kong.DynamicCommand(
			opts.Name,
			opts.Description,
			opts.Group,
			cmd,
			opts.buildTags()...,
		))
	}
	return options
}

func newParser(root *cli, stdout, stderr io.Writer, exit func(int)) (*kong.Kong, error) {
	options := []kong.Option{
		kong.Name("casectl"),
		kong.Description("Validate and replay CMMN case definitions."),
		kong.UsageOnError(),
		kong.Writers(stdout, stderr),
		kong.Exit(exit),
	}
	options = append(options, cliOptions(commands())...)
	return kong.New(root, options...)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer, exit func(int)) error {
	var root cli
	parser, err := newParser(&root, stdout, stderr, exit)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	app := &appContext{
		ctx:    ctx,
		out:    stdout,
		logger: execution.NewLogger(stderr, root.LogLevel, root.LogJSON),
	}
	return kctx.Run(app)
}

func main() {
	if err := execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr, os.Exit); err != nil {
		fmt.Fprintf(os.Stderr, "casectl: %v\n", err)
		os.Exit(1)
	}
}
