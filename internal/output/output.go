// Package output writes the products of a preprocessing session: the
// expanded token stream and the user macro table.
package output

import (
	"bufio"
	"io"
	"iter"
	"strings"

	"github.com/fwessels/mzcpp/internal/preprocessor"
)

// Stream writes every token of seq to w in order, with no separator. The
// first error of the sequence stops the stream and is returned as is;
// what was written before it stays written.
func Stream(seq iter.Seq2[preprocessor.Token, error], w io.Writer) (err error) {
	bw := bufio.NewWriter(w)
	defer func() {
		if ferr := bw.Flush(); err == nil {
			err = ferr
		}
	}()

	for tok, terr := range seq {
		if terr != nil {
			return terr
		}
		if _, err := bw.WriteString(tok.Value); err != nil {
			return err
		}
	}
	return nil
}

// MacroTable is the read-only view of a macro table. Names are returned in
// table order.
type MacroTable interface {
	MacroNames() []string
	MacroDefinition(name string) (preprocessor.MacroDefinition, bool)
}

// ReportMacros writes one line per macro that is not predefined:
//
//	file:line: #define NAME(p1,p2) body
func ReportMacros(table MacroTable, w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, name := range table.MacroNames() {
		def, ok := table.MacroDefinition(name)
		if !ok || def.Predefined {
			continue
		}
		if _, err := bw.WriteString(FormatDefinition(def) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// FormatDefinition renders def without a trailing newline. Backslashes in
// the file name are written as slashes so the dump is the same on every
// host.
func FormatDefinition(def preprocessor.MacroDefinition) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(def.Pos.String(), `\`, "/"))
	b.WriteString(": #define ")
	b.WriteString(def.Name)
	if def.FunctionLike {
		b.WriteString("(" + strings.Join(def.Params, ",") + ")")
	}
	b.WriteByte(' ')
	for _, t := range def.Body {
		b.WriteString(t.Value)
	}
	return b.String()
}
