package preprocessor

import "strings"

// Language is a bitset of supported language features and output options.
type Language uint32

const (
	SupportC99 Language = 1 << iota
	SupportCPP11
	SupportVariadics
	SupportLongLong
	SupportContinuationNewlines // emit the newlines removed by line splicing
	SupportInsertWhitespace     // separate tokens that would otherwise lex together
	SupportConvertTrigraphs
	SupportSingleLine // keep multi-line macro invocations on one output line
	SupportLineDirectives
	SupportIncludeGuardDetection
	SupportPragmaDirectives
)

var languageNames = []struct {
	bit  Language
	name string
}{
	{SupportC99, "c99"},
	{SupportCPP11, "c++11"},
	{SupportVariadics, "variadics"},
	{SupportLongLong, "long_long"},
	{SupportContinuationNewlines, "emit_contnewlines"},
	{SupportInsertWhitespace, "insert_whitespace"},
	{SupportConvertTrigraphs, "convert_trigraphs"},
	{SupportSingleLine, "single_line"},
	{SupportLineDirectives, "emit_line_directives"},
	{SupportIncludeGuardDetection, "include_guard_detection"},
	{SupportPragmaDirectives, "emit_pragma_directives"},
}

func (l Language) String() string {
	var names []string
	for _, n := range languageNames {
		if l&n.bit != 0 {
			names = append(names, n.name)
		}
	}
	return strings.Join(names, "|")
}

func (l Language) variadics() bool {
	return l&(SupportVariadics|SupportC99|SupportCPP11) != 0
}

func (l Language) longLong() bool {
	return l&(SupportLongLong|SupportC99|SupportCPP11) != 0
}
