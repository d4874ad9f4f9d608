// Package session turns a resolved command line into a configured,
// single-use preprocessing context.
package session

import (
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/fwessels/mzcpp/internal/cli"
	"github.com/fwessels/mzcpp/internal/envpath"
	"github.com/fwessels/mzcpp/internal/preprocessor"
)

// SourceDateEpochVar fixes __DATE__ and __TIME__ for reproducible builds.
const SourceDateEpochVar = "SOURCE_DATE_EPOCH"

// Options carries the capabilities a session is built with.
type Options struct {
	Policy   preprocessor.InputPolicy
	Platform envpath.Platform
	Env      envpath.Env
	Logger   *slog.Logger
	Warn     func(*preprocessor.Error) // #warning and other non-fatal diagnostics
}

const baseLanguage = preprocessor.SupportContinuationNewlines |
	preprocessor.SupportInsertWhitespace |
	preprocessor.SupportConvertTrigraphs |
	preprocessor.SupportSingleLine |
	preprocessor.SupportLineDirectives |
	preprocessor.SupportIncludeGuardDetection |
	preprocessor.SupportPragmaDirectives

// Language returns the engine feature set of a dialect.
func Language(d cli.Dialect) preprocessor.Language {
	if d == cli.DialectCPP {
		return preprocessor.SupportCPP11 | preprocessor.SupportVariadics | preprocessor.SupportLongLong | baseLanguage
	}
	return preprocessor.SupportC99 | baseLanguage
}

// PredefinedMacros returns the dialect and host macros installed before
// any command line definition, in command line form.
func PredefinedMacros(d cli.Dialect, p envpath.Platform) []string {
	defs := []string{"__MZCPP__=1"}
	switch p.OS {
	case "windows":
		defs = append(defs, "_WIN32=1")
		if p.Arch == "amd64" || p.Arch == "arm64" {
			defs = append(defs, "_WIN64=1")
		}
	case "linux", "android":
		defs = append(defs, "__linux__=1", "__unix__=1")
	case "darwin", "ios":
		defs = append(defs, "__APPLE__=1", "__MACH__=1")
	case "freebsd", "netbsd", "openbsd", "dragonfly", "solaris", "illumos", "aix":
		defs = append(defs, "__unix__=1")
	}
	switch p.Arch {
	case "amd64":
		defs = append(defs, "__x86_64__=1")
	case "386":
		defs = append(defs, "__i386__=1")
	case "arm64":
		defs = append(defs, "__aarch64__=1")
	}
	if d == cli.DialectRC {
		defs = append(defs, "RC_INVOKED=1")
	}
	return defs
}

// Build creates the session for cfg. Command line definitions are applied
// in order, then every -U, then the include paths: -I, -S, and finally the
// paths derived from the environment.
func Build(cfg *cli.Config, opts Options) (*preprocessor.Context, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	env := opts.Env
	if env == nil {
		env = envpath.OSEnv{}
	}

	ctxOpts := []preprocessor.Option{preprocessor.WithLogger(logger)}
	if opts.Warn != nil {
		ctxOpts = append(ctxOpts, preprocessor.WithWarningHandler(opts.Warn))
	}
	if t, ok := sourceDate(env, logger); ok {
		ctxOpts = append(ctxOpts, preprocessor.WithTime(t))
	}

	ctx := preprocessor.New(cfg.Input, opts.Policy, ctxOpts...)
	ctx.SetLanguage(Language(cfg.Dialect))

	for _, def := range PredefinedMacros(cfg.Dialect, opts.Platform) {
		if err := ctx.AddMacroDefinition(def, true); err != nil {
			return nil, fmt.Errorf("predefined macro %s: %w", def, err)
		}
	}
	for _, def := range cfg.Defines {
		if err := ctx.AddMacroDefinition(def.Definition(), false); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Undefines {
		if err := ctx.RemoveMacroDefinition(name); err != nil {
			return nil, err
		}
	}

	for _, path := range cfg.IncludePaths {
		if err := ctx.AddIncludePath(path); err != nil {
			return nil, err
		}
	}
	for _, path := range cfg.SysIncludePaths {
		if err := ctx.AddSysIncludePath(path); err != nil {
			return nil, err
		}
	}
	for _, path := range envpath.Augment(opts.Platform, env) {
		if err := ctx.AddSysIncludePath(path); err != nil {
			return nil, err
		}
	}

	user, system := ctx.IncludePaths()
	logger.Debug("session configured",
		"input", cfg.Input,
		"dialect", cfg.Dialect.String(),
		"language", ctx.Language().String(),
		"macros", len(ctx.MacroNames()),
		"include", user,
		"sysinclude", system)
	return ctx, nil
}

// sourceDate reads SOURCE_DATE_EPOCH. An unusable value is reported and
// ignored.
func sourceDate(env envpath.Env, logger *slog.Logger) (time.Time, bool) {
	v, ok := env.LookupEnv(SourceDateEpochVar)
	if !ok || v == "" {
		return time.Time{}, false
	}
	secs, err := strconv.ParseInt(v, 10, 64)
	if err != nil || secs < 0 {
		logger.Warn("ignoring invalid "+SourceDateEpochVar, "value", v)
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}
