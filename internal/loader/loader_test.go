package loader

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fwessels/mzcpp/internal/preprocessor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileLoader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crlf.h")
	require.NoError(t, os.WriteFile(path, []byte("a\r\nb"), 0o600))

	var logs bytes.Buffer
	l := NewFileLoader(slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	assert.True(t, l.Exists(path))
	assert.False(t, l.Exists(dir), "directories are not loadable")
	assert.False(t, l.Exists(filepath.Join(dir, "missing.h")))

	src, err := l.Load(path, preprocessor.Position{})
	require.NoError(t, err)
	assert.Equal(t, path, src.Path)
	assert.Equal(t, "a\r\nb\n", string(src.Text), "line endings are kept and one newline is appended")
	assert.Contains(t, logs.String(), "size=\"5 B\"")
}

func TestFileLoaderEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.h")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	src, err := NewFileLoader(nil).Load(path, preprocessor.Position{})
	require.NoError(t, err)
	assert.Equal(t, "\n", string(src.Text))
}

func TestFileLoaderMissing(t *testing.T) {
	from := preprocessor.Position{File: "main.c", Line: 3}
	path := filepath.Join(t.TempDir(), "missing.h")

	_, err := NewFileLoader(nil).Load(path, from)
	var perr *preprocessor.Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, preprocessor.BadIncludeFile, perr.Kind)
	assert.Equal(t, from, perr.Pos)
	assert.True(t, strings.HasPrefix(err.Error(), "main.c:3: could not open include file: "))
	assert.Contains(t, err.Error(), "missing.h")
}

func TestMapLoader(t *testing.T) {
	m := MapLoader{"dir/a.h": "x"}
	assert.True(t, m.Exists(filepath.Join("dir", "a.h")))
	assert.False(t, m.Exists("a.h"))

	src, err := m.Load(filepath.Join("dir", "a.h"), preprocessor.Position{})
	require.NoError(t, err)
	assert.Equal(t, "x\n", string(src.Text))

	_, err = m.Load("b.h", preprocessor.Position{File: "dir/a.h", Line: 1})
	assert.EqualError(t, err, "dir/a.h:1: could not open include file: b.h")
}
