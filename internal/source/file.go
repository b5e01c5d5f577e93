package source

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/afero"

	"shedcmd/internal/fault"
	appLog "shedcmd/internal/log"
)

// File reads the schedule from a local file on every fetch. A file that
// cannot be read is an operator error, so every failure is fatal.
type File struct {
	Path string
	Fs   afero.Fs
}

func (f *File) Obtain(_ context.Context, _ string) (string, error) {
	data, err := afero.ReadFile(f.Fs, f.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fault.Fatalf("schedule file %s does not exist: %w", f.Path, err)
		}
		return "", fault.Fatalf("reading schedule file %s: %w", f.Path, err)
	}
	appLog.Info("schedule read from file", "path", f.Path, "bytes", len(data))
	return string(data), nil
}

func (f *File) Kind() Kind { return KindFile }

func (f *File) Describe() string { return fmt.Sprintf("file %s", f.Path) }
