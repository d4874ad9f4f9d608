package session

import (
	"strings"
	"testing"

	"github.com/fwessels/mzcpp/internal/cli"
	"github.com/fwessels/mzcpp/internal/envpath"
	"github.com/fwessels/mzcpp/internal/loader"
	"github.com/fwessels/mzcpp/internal/preprocessor"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var linux = envpath.Platform{OS: "linux", Arch: "amd64"}

func body(def preprocessor.MacroDefinition) string {
	var b strings.Builder
	for _, t := range def.Body {
		b.WriteString(t.Value)
	}
	return b.String()
}

func render(t *testing.T, ctx *preprocessor.Context) string {
	t.Helper()
	var b strings.Builder
	for tok, err := range ctx.Tokens() {
		require.NoError(t, err)
		b.WriteString(tok.Value)
	}
	return b.String()
}

func TestLanguage(t *testing.T) {
	c := Language(cli.DialectC)
	assert.NotZero(t, c&preprocessor.SupportC99)
	assert.Zero(t, c&preprocessor.SupportCPP11)
	assert.NotZero(t, c&preprocessor.SupportIncludeGuardDetection)

	cpp := Language(cli.DialectCPP)
	assert.NotZero(t, cpp&preprocessor.SupportCPP11)
	assert.NotZero(t, cpp&preprocessor.SupportVariadics)
	assert.NotZero(t, cpp&preprocessor.SupportLongLong)
	assert.Zero(t, cpp&preprocessor.SupportC99)

	assert.Equal(t, c, Language(cli.DialectRC))
}

func TestPredefinedMacros(t *testing.T) {
	tests := []struct {
		dialect  cli.Dialect
		platform envpath.Platform
		want     []string
	}{
		{cli.DialectC, linux, []string{"__MZCPP__=1", "__linux__=1", "__unix__=1", "__x86_64__=1"}},
		{cli.DialectRC, envpath.Platform{OS: "windows", Arch: "arm64"}, []string{"__MZCPP__=1", "_WIN32=1", "_WIN64=1", "__aarch64__=1", "RC_INVOKED=1"}},
		{cli.DialectCPP, envpath.Platform{OS: "windows", Arch: "386"}, []string{"__MZCPP__=1", "_WIN32=1", "__i386__=1"}},
		{cli.DialectC, envpath.Platform{OS: "darwin", Arch: "arm64"}, []string{"__MZCPP__=1", "__APPLE__=1", "__MACH__=1", "__aarch64__=1"}},
		{cli.DialectC, envpath.Platform{OS: "plan9", Arch: "mips"}, []string{"__MZCPP__=1"}},
	}
	for _, tt := range tests {
		got := PredefinedMacros(tt.dialect, tt.platform)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("PredefinedMacros(%s, %v) mismatch (-want +got):\n%s", tt.dialect, tt.platform, diff)
		}
	}
}

func TestBuild(t *testing.T) {
	cfg := &cli.Config{
		Dialect:         cli.DialectRC,
		Defines:         []cli.MacroEdit{{Name: "A", Value: "1", HasValue: true}, {Name: "A", Value: "2", HasValue: true}, {Name: "B"}, {Name: "C"}},
		Undefines:       []string{"C", "NEVER_DEFINED"},
		IncludePaths:    []string{"inc"},
		SysIncludePaths: []string{"sys"},
		Input:           "main.rc",
	}
	env := envpath.MapEnv{"CPATH": "/opt/include"}
	ctx, err := Build(cfg, Options{Policy: loader.MapLoader{}, Platform: linux, Env: env})
	require.NoError(t, err)

	assert.Equal(t, "main.rc", ctx.Root())
	assert.Equal(t, Language(cli.DialectRC), ctx.Language())

	a, ok := ctx.MacroDefinition("A")
	require.True(t, ok)
	assert.Equal(t, "2", body(a), "the later -D wins")
	assert.False(t, a.Predefined)
	assert.Equal(t, preprocessor.Position{File: "<command line>", Line: 1}, a.Pos)

	b, ok := ctx.MacroDefinition("B")
	require.True(t, ok)
	assert.Equal(t, "1", body(b))

	_, ok = ctx.MacroDefinition("C")
	assert.False(t, ok, "-U is applied after every -D")

	rc, ok := ctx.MacroDefinition("RC_INVOKED")
	require.True(t, ok)
	assert.True(t, rc.Predefined)
	linuxMacro, ok := ctx.MacroDefinition("__linux__")
	require.True(t, ok)
	assert.True(t, linuxMacro.Predefined)

	user, system := ctx.IncludePaths()
	assert.Equal(t, []string{"inc"}, user)
	assert.Equal(t, []string{"sys", "/opt/include"}, system)
}

func TestBuildUndefinePredefined(t *testing.T) {
	cfg := &cli.Config{Undefines: []string{"__linux__"}, Input: "main.c"}
	ctx, err := Build(cfg, Options{Policy: loader.MapLoader{}, Platform: linux, Env: envpath.MapEnv{}})
	require.NoError(t, err)
	_, ok := ctx.MacroDefinition("__linux__")
	assert.False(t, ok)
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  *cli.Config
	}{
		{"bad define name", &cli.Config{Defines: []cli.MacroEdit{{Name: "1A"}}, Input: "main.c"}},
		{"unterminated parameters", &cli.Config{Defines: []cli.MacroEdit{{Name: "F(a", Value: "a", HasValue: true}}, Input: "main.c"}},
		{"bad undefine name", &cli.Config{Undefines: []string{"A-B"}, Input: "main.c"}},
		{"builtin", &cli.Config{Defines: []cli.MacroEdit{{Name: "__LINE__"}}, Input: "main.c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Build(tt.cfg, Options{Policy: loader.MapLoader{}, Platform: linux, Env: envpath.MapEnv{}})
			var perr *preprocessor.Error
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, preprocessor.InvalidMacroSyntax, perr.Kind)
		})
	}
}

func TestBuildUserPathsFirst(t *testing.T) {
	files := loader.MapLoader{
		"main.c":  `#include "x.h"`,
		"inc/x.h": "user",
		"sys/x.h": "system",
	}
	cfg := &cli.Config{IncludePaths: []string{"inc"}, SysIncludePaths: []string{"sys"}, Input: "main.c"}
	ctx, err := Build(cfg, Options{Policy: files, Platform: linux, Env: envpath.MapEnv{}})
	require.NoError(t, err)

	out := render(t, ctx)
	assert.Contains(t, out, "user")
	assert.NotContains(t, out, "system")
}

func TestBuildSourceDateEpoch(t *testing.T) {
	files := loader.MapLoader{"main.c": "__DATE__ __TIME__"}
	env := envpath.MapEnv{SourceDateEpochVar: "1709647629"}
	ctx, err := Build(&cli.Config{Input: "main.c"}, Options{Policy: files, Platform: linux, Env: env})
	require.NoError(t, err)

	if diff := cmp.Diff("\"Mar  5 2024\" \"14:07:09\"\n", render(t, ctx)); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildWarningHandler(t *testing.T) {
	files := loader.MapLoader{"main.c": "#warning careful\nx"}
	var warnings []string
	opts := Options{
		Policy:   files,
		Platform: linux,
		Env:      envpath.MapEnv{},
		Warn:     func(e *preprocessor.Error) { warnings = append(warnings, e.Error()) },
	}
	ctx, err := Build(&cli.Config{Input: "main.c"}, opts)
	require.NoError(t, err)

	assert.Contains(t, render(t, ctx), "x")
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "main.c:1:")
	assert.Contains(t, warnings[0], "careful")
}
