// Package testsupport provides in-memory doubles for runtime.LineIO and
// runtime.FileSystem so interpreter tests never touch a real console or
// disk, in the spirit of the teacher's mocks package.
package testsupport

import (
	"bytes"
	"io"
	"strings"

	"github.com/google/uuid"
)

// FakeIO is an in-memory console: ReadLine drains preloaded input lines,
// Print and Println accumulate into Output.
type FakeIO struct {
	Output strings.Builder

	lines []string
}

// NewFakeIO builds a console preloaded with the given INPUT lines. GET()
// reads from the same queue, one line at a time, since the runtime
// buffers characters from whatever ReadLine returns.
func NewFakeIO(lines ...string) *FakeIO {
	return &FakeIO{lines: lines}
}

func (f *FakeIO) Print(s string) error {
	f.Output.WriteString(s)
	return nil
}

func (f *FakeIO) Println(s string) error {
	f.Output.WriteString(s)
	f.Output.WriteString("\n")
	return nil
}

func (f *FakeIO) ReadLine() (string, error) {
	if len(f.lines) == 0 {
		return "", io.EOF
	}
	line := f.lines[0]
	f.lines = f.lines[1:]
	return line, nil
}

// nopCloser adapts a bytes.Buffer to io.WriteCloser without touching disk.
type nopCloser struct {
	*bytes.Buffer
}

func (nopCloser) Close() error { return nil }

// FakeFileSystem is an in-memory FileSystem: every OPEN reads and writes
// named byte buffers held in Files rather than real paths.
type FakeFileSystem struct {
	Files map[string]*bytes.Buffer
}

// NewFakeFileSystem builds an empty in-memory filesystem.
func NewFakeFileSystem() *FakeFileSystem {
	return &FakeFileSystem{Files: map[string]*bytes.Buffer{}}
}

// Seed preloads path with content, as if an earlier OUTPUT had written it.
func (fs *FakeFileSystem) Seed(path, content string) {
	fs.Files[path] = bytes.NewBufferString(content)
}

// TempPath returns a fresh, collision-free path for tests that only care
// that OPEN succeeds against some file, not its name.
func (fs *FakeFileSystem) TempPath() string {
	return "tmp-" + uuid.NewString() + ".dat"
}

func (fs *FakeFileSystem) OpenForOutput(path string) (io.WriteCloser, error) {
	buf := &bytes.Buffer{}
	fs.Files[path] = buf
	return nopCloser{buf}, nil
}

func (fs *FakeFileSystem) OpenForAppend(path string) (io.WriteCloser, error) {
	buf, ok := fs.Files[path]
	if !ok {
		buf = &bytes.Buffer{}
		fs.Files[path] = buf
	}
	return nopCloser{buf}, nil
}

func (fs *FakeFileSystem) OpenForInput(path string) (io.ReadCloser, error) {
	buf, ok := fs.Files[path]
	if !ok {
		return nil, io.ErrUnexpectedEOF
	}
	return io.NopCloser(bytes.NewReader(buf.Bytes())), nil
}
