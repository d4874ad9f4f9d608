package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fwessels/mzcpp/internal/envpath"
	"github.com/kballard/go-shellquote"
)

// Version is reported by --version.
const Version = "0.0"

// Process exit codes.
const (
	ExitOK           = 0
	ExitInternal     = 1
	ExitArgument     = 2
	ExitInvalidMacro = 3
	ExitNoInput      = 4
	ExitCannotOpen   = 5
	ExitPreprocess   = 6
	ExitBadInclude   = 7
)

// OptionsVar names the environment variable holding default options.
const OptionsVar = "MZCPP_OPTIONS"

const Usage = `Usage: mzcpp [options] input-file
Options:
  -Dmacro          Defines a macro
  -Dmacro=def      Defines a macro
  -Umacro          Undefines a macro
  -Ipath           Adds include path
  -Spath           Adds system include path
  -o output.txt    Sets output file
  -oM macros.txt   Sets macro definition output file
  -x {c|c++|rc}    Selects the input language (default c)
  -dM              Output macro definitions
  -E               Ignored
  --help           Shows this help
  --version        Shows version information
Environment:
  MZCPP_OPTIONS    Options inserted before the command line arguments
  MZCPP_LOG_LEVEL  Log level: debug, info, warn or error (default warn)
`

var (
	// ErrHelp and ErrVersion end argument parsing successfully; no
	// preprocessing takes place.
	ErrHelp    = errors.New("help requested")
	ErrVersion = errors.New("version requested")
)

// ErrorKind classifies command line failures.
type ErrorKind int

const (
	UnknownOption ErrorKind = iota + 1
	MissingArgument
	InvalidDialect
	MultipleInputFiles
	MultipleOutputFiles
	InvalidOptions
	NoInputFile
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Kind    ErrorKind
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func argumentError(kind ErrorKind, format string, args ...any) *ExitError {
	return &ExitError{Code: ExitArgument, Kind: kind, Message: "ERROR: " + fmt.Sprintf(format, args...)}
}

// Dialect selects the language rules of a session.
type Dialect int

const (
	DialectC Dialect = iota
	DialectCPP
	DialectRC
)

func (d Dialect) String() string {
	switch d {
	case DialectCPP:
		return "c++"
	case DialectRC:
		return "rc"
	}
	return "c"
}

// ParseDialect accepts c, c++ and rc in any case.
func ParseDialect(s string) (Dialect, bool) {
	switch strings.ToLower(s) {
	case "c":
		return DialectC, true
	case "c++":
		return DialectCPP, true
	case "rc":
		return DialectRC, true
	}
	return DialectC, false
}

// MacroEdit is one -D option. Name may carry a parameter list, as in
// -D'F(x)=x'.
type MacroEdit struct {
	Name     string
	Value    string
	HasValue bool
}

func parseMacroEdit(s string) MacroEdit {
	name, value, ok := strings.Cut(s, "=")
	return MacroEdit{Name: name, Value: value, HasValue: ok}
}

// Definition returns the edit in NAME[=VALUE] form.
func (m MacroEdit) Definition() string {
	if m.HasValue {
		return m.Name + "=" + m.Value
	}
	return m.Name
}

// Config is the resolved command line. It is not modified after Parse
// returns it.
type Config struct {
	Dialect         Dialect
	Defines         []MacroEdit
	Undefines       []string
	IncludePaths    []string
	SysIncludePaths []string
	Input           string
	Output          string // empty: standard output
	MacroOutput     string // empty: same sink as the preprocessed output
	EmitMacros      bool
}

// Parse processes command-line arguments, preceded by the options in the
// MZCPP_OPTIONS environment variable. It returns a Config, ErrHelp,
// ErrVersion, or an *ExitError.
func Parse(args []string, env envpath.Env) (*Config, error) {
	if opts, ok := env.LookupEnv(OptionsVar); ok && strings.TrimSpace(opts) != "" {
		words, err := shellquote.Split(opts)
		if err != nil {
			return nil, argumentError(InvalidOptions, "invalid %s: %v", OptionsVar, err)
		}
		args = append(words, args...)
	}
	if len(args) == 0 {
		return nil, &ExitError{Code: ExitNoInput, Kind: NoInputFile, Message: strings.TrimSuffix(Usage, "\n")}
	}

	cfg := &Config{}
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// value returns the attached value of a short option, or else the
		// next argument.
		value := func(prefix string) (string, error) {
			if v := arg[len(prefix):]; v != "" {
				return v, nil
			}
			if i+1 >= len(args) || args[i+1] == "" {
				return "", argumentError(MissingArgument, "No argument specified for '%s'", prefix)
			}
			i++
			return args[i], nil
		}

		switch {
		case arg == "--help":
			return nil, ErrHelp

		case arg == "--version":
			return nil, ErrVersion

		case !strings.HasPrefix(arg, "-"):
			if cfg.Input != "" {
				return nil, argumentError(MultipleInputFiles, "multiple input files specified")
			}
			cfg.Input = arg

		case arg == "-o" || arg == "-oM":
			target := &cfg.Output
			if arg == "-oM" {
				target = &cfg.MacroOutput
			}
			if i+1 >= len(args) || args[i+1] == "" {
				return nil, argumentError(MissingArgument, "No argument specified for '%s'", arg)
			}
			if *target != "" {
				return nil, argumentError(MultipleOutputFiles, "multiple output files specified")
			}
			i++
			*target = args[i]

		case arg == "-dM":
			cfg.EmitMacros = true

		case arg == "-E":

		case strings.HasPrefix(arg, "-x"):
			v, err := value("-x")
			if err != nil {
				return nil, err
			}
			d, ok := ParseDialect(v)
			if !ok {
				return nil, argumentError(InvalidDialect, "invalid language '%s' (expected c, c++ or rc)", v)
			}
			cfg.Dialect = d

		case len(arg) >= 2 && strings.IndexByte("DUIS", arg[1]) >= 0:
			v, err := value(arg[:2])
			if err != nil {
				return nil, err
			}
			switch arg[1] {
			case 'D':
				cfg.Defines = append(cfg.Defines, parseMacroEdit(v))
			case 'U':
				cfg.Undefines = append(cfg.Undefines, v)
			case 'I':
				cfg.IncludePaths = append(cfg.IncludePaths, v)
			case 'S':
				cfg.SysIncludePaths = append(cfg.SysIncludePaths, v)
			}

		default:
			return nil, argumentError(UnknownOption, "invalid argument '%s'", arg)
		}
	}

	if cfg.Input == "" {
		return nil, &ExitError{Code: ExitNoInput, Kind: NoInputFile, Message: "ERROR: No input file"}
	}
	return cfg, nil
}
