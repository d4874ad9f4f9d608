// Package loader provides the source loading policies the preprocessor
// reads the root file and every included file through.
package loader

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/fwessels/mzcpp/internal/preprocessor"
)

// badInclude reports a file that was found but could not be read. from is
// the position of the #include, zero for the root file.
func badInclude(path string, from preprocessor.Position) *preprocessor.Error {
	return &preprocessor.Error{
		Kind:        preprocessor.BadIncludeFile,
		Pos:         from,
		Description: fmt.Sprintf("could not open include file: %s", path),
	}
}

// terminate appends the newline every loaded buffer ends with, so the last
// line of a file without one is still tokenized as a complete line.
func terminate(text []byte) []byte {
	return append(text, '\n')
}

// FileLoader reads sources from the file system, byte for byte.
type FileLoader struct {
	logger *slog.Logger
}

func NewFileLoader(logger *slog.Logger) *FileLoader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &FileLoader{logger: logger}
}

func (l *FileLoader) Exists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}

func (l *FileLoader) Load(path string, from preprocessor.Position) (*preprocessor.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		l.logger.Debug("cannot open source", "path", path, "error", err)
		return nil, badInclude(path, from)
	}
	defer f.Close()

	text, err := io.ReadAll(f)
	if err != nil {
		l.logger.Debug("cannot read source", "path", path, "error", err)
		return nil, badInclude(path, from)
	}
	l.logger.Debug("loaded source", "path", path, "size", humanize.Bytes(uint64(len(text))))
	return &preprocessor.Source{Path: path, Text: terminate(text)}, nil
}

// MapLoader serves sources from memory. Keys are slash separated paths.
type MapLoader map[string]string

func (m MapLoader) Exists(path string) bool {
	_, ok := m[filepath.ToSlash(path)]
	return ok
}

func (m MapLoader) Load(path string, from preprocessor.Position) (*preprocessor.Source, error) {
	text, ok := m[filepath.ToSlash(path)]
	if !ok {
		return nil, badInclude(path, from)
	}
	return &preprocessor.Source{Path: path, Text: terminate([]byte(text))}, nil
}
