/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package mzcpp is the driver of the mzcpp preprocessor: it resolves the
// command line, configures a preprocessing session, streams its output
// and dumps the macro table.
package mzcpp

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/fwessels/mzcpp/internal/cli"
	"github.com/fwessels/mzcpp/internal/envpath"
	"github.com/fwessels/mzcpp/internal/loader"
	"github.com/fwessels/mzcpp/internal/output"
	"github.com/fwessels/mzcpp/internal/preprocessor"
	"github.com/fwessels/mzcpp/internal/session"
)

// Options are the process capabilities Run works with. Zero fields get
// the process defaults.
type Options struct {
	Stdout   io.Writer
	Stderr   io.Writer
	Env      envpath.Env
	Platform envpath.Platform
	Policy   preprocessor.InputPolicy
	Color    bool // embolden diagnostic locations
	Logger   *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Stdout == nil {
		o.Stdout = os.Stdout
	}
	if o.Stderr == nil {
		o.Stderr = os.Stderr
	}
	if o.Env == nil {
		o.Env = envpath.OSEnv{}
	}
	if o.Platform == (envpath.Platform{}) {
		o.Platform = envpath.Host()
	}
	if o.Logger == nil {
		level, _ := o.Env.LookupEnv(LogLevelVar)
		o.Logger = newLogger(level, o.Stderr)
	}
	if o.Policy == nil {
		o.Policy = loader.NewFileLoader(o.Logger)
	}
}

// openError is a sink that could not be created.
type openError struct {
	path string
	err  error
}

func (e *openError) Error() string {
	return fmt.Sprintf("ERROR: cannot open file '%s'", e.path)
}

func (e *openError) Unwrap() error { return e.err }

// Run executes one invocation and returns the process exit code.
func Run(args []string, opts Options) int {
	opts.setDefaults()
	d := &diagnostics{w: opts.Stderr, bold: color.New(color.Bold)}
	if opts.Color {
		d.bold.EnableColor()
	} else {
		d.bold.DisableColor()
	}

	cfg, err := cli.Parse(args, opts.Env)
	switch {
	case errors.Is(err, cli.ErrHelp):
		fmt.Fprint(opts.Stdout, cli.Usage)
		return cli.ExitOK
	case errors.Is(err, cli.ErrVersion):
		fmt.Fprintf(opts.Stdout, "mzcpp %s\n", cli.Version)
		return cli.ExitOK
	case err != nil:
		return d.fail(err)
	}
	opts.Logger.Debug("resolved configuration",
		"input", cfg.Input,
		"output", cfg.Output,
		"macro_output", cfg.MacroOutput,
		"dialect", cfg.Dialect.String(),
		"defines", len(cfg.Defines),
		"undefines", len(cfg.Undefines),
		"dump_macros", cfg.EmitMacros)

	if !opts.Policy.Exists(cfg.Input) {
		return d.fail(&cli.ExitError{
			Code:    cli.ExitNoInput,
			Kind:    cli.NoInputFile,
			Message: fmt.Sprintf("ERROR: cannot find input file '%s'", cfg.Input),
		})
	}

	ctx, err := session.Build(cfg, session.Options{
		Policy:   opts.Policy,
		Platform: opts.Platform,
		Env:      opts.Env,
		Logger:   opts.Logger,
		Warn:     d.warn,
	})
	if err != nil {
		return d.fail(err)
	}

	if err := preprocess(ctx, cfg, opts.Stdout, opts.Logger); err != nil {
		return d.fail(err)
	}
	return cli.ExitOK
}

// preprocess streams the output of ctx to its sink and then writes the
// macro dump if one was requested. Sinks are created before the first
// token is produced.
func preprocess(ctx *preprocessor.Context, cfg *cli.Config, stdout io.Writer, logger *slog.Logger) error {
	return withSink(cfg.Output, stdout, func(w io.Writer) error {
		if err := output.Stream(ctx.Tokens(), w); err != nil {
			return err
		}
		logger.Debug("preprocessing finished", "macros", len(ctx.MacroNames()))
		if !cfg.EmitMacros {
			return nil
		}
		return withSink(cfg.MacroOutput, w, func(mw io.Writer) error {
			return output.ReportMacros(ctx, mw)
		})
	})
}

// withSink calls fn with the file at path, or with fallback when path is
// empty. The file is closed on every path and a close failure is reported
// when fn succeeded.
func withSink(path string, fallback io.Writer, fn func(io.Writer) error) (err error) {
	if path == "" {
		return fn(fallback)
	}
	f, err := os.Create(path)
	if err != nil {
		return &openError{path: path, err: err}
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return fn(f)
}

// ---------------- Diagnostics ----------------

type diagnostics struct {
	w    io.Writer
	bold *color.Color
}

func (d *diagnostics) location(pos preprocessor.Position) string {
	return d.bold.Sprintf("%s:%d:", pos.File, pos.Line)
}

func (d *diagnostics) warn(e *preprocessor.Error) {
	fmt.Fprintf(d.w, "%s warning: %s\n", d.location(e.Pos), e.Description)
}

// fail prints err and returns its exit code.
func (d *diagnostics) fail(err error) int {
	var (
		exitErr *cli.ExitError
		openErr *openError
		ppErr   *preprocessor.Error
	)
	switch {
	case errors.As(err, &exitErr):
		fmt.Fprintln(d.w, exitErr.Message)
		return exitErr.Code

	case errors.As(err, &openErr):
		fmt.Fprintln(d.w, openErr.Error())
		return cli.ExitCannotOpen

	case errors.As(err, &ppErr):
		if ppErr.Pos.File == "" {
			fmt.Fprintf(d.w, "ERROR: %s\n", ppErr.Description)
		} else {
			fmt.Fprintf(d.w, "%s %s\n", d.location(ppErr.Pos), ppErr.Description)
		}
		return exitCode(ppErr)
	}
	fmt.Fprintf(d.w, "ERROR: %v\n", err)
	return cli.ExitInternal
}

// exitCode maps an engine diagnostic to the process exit code. A load
// failure without a position is the root file itself.
func exitCode(e *preprocessor.Error) int {
	switch e.Kind {
	case preprocessor.BadIncludeFile:
		if e.Pos.File == "" {
			return cli.ExitCannotOpen
		}
		return cli.ExitBadInclude
	case preprocessor.InvalidMacroSyntax:
		return cli.ExitInvalidMacro
	}
	return cli.ExitPreprocess
}
