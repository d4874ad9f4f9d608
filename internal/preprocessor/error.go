package preprocessor

import "fmt"

// ErrorKind classifies preprocessing diagnostics.
type ErrorKind int

const (
	_ ErrorKind = iota
	BadIncludeFile
	IllFormedDirective
	MissingMatchingIf
	MissingMatchingEndif
	IllFormedExpression
	DivisionByZero
	MacroRedefinition
	IllegalRedefinition
	BadMacroDefinition
	BadMacroInvocation
	IllFormedOperator
	ErrorDirective
	WarningDirective
	InvalidMacroSyntax
	IncludeNestingTooDeep
	UnterminatedComment
	ContextConsumed
)

var errorKindNames = map[ErrorKind]string{
	BadIncludeFile:        "bad include file",
	IllFormedDirective:    "ill formed directive",
	MissingMatchingIf:     "missing matching #if",
	MissingMatchingEndif:  "missing matching #endif",
	IllFormedExpression:   "ill formed expression",
	DivisionByZero:        "division by zero",
	MacroRedefinition:     "macro redefinition",
	IllegalRedefinition:   "illegal redefinition",
	BadMacroDefinition:    "bad macro definition",
	BadMacroInvocation:    "bad macro invocation",
	IllFormedOperator:     "ill formed operator",
	ErrorDirective:        "#error directive",
	WarningDirective:      "#warning directive",
	InvalidMacroSyntax:    "invalid macro syntax",
	IncludeNestingTooDeep: "include nesting too deep",
	UnterminatedComment:   "unterminated comment",
	ContextConsumed:       "context consumed",
}

func (k ErrorKind) String() string {
	if s, ok := errorKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is a diagnostic raised while preprocessing. Pos is the presumed
// position the problem was detected at; it is zero for errors that have
// no source location, such as a malformed command line definition.
type Error struct {
	Kind        ErrorKind
	Pos         Position
	Description string
}

func (e *Error) Error() string {
	if e.Pos.File == "" {
		return e.Description
	}
	return fmt.Sprintf("%s:%d: %s", e.Pos.File, e.Pos.Line, e.Description)
}

func errorf(kind ErrorKind, pos Position, format string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Description: fmt.Sprintf(format, args...)}
}
