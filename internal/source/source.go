// Package source obtains the raw schedule payload from one of three places:
// a pinned static response, a local file, or an HTTP endpoint. The variant is
// chosen once at startup and never changes.
package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/afero"

	"shedcmd/internal/config"
)

// Kind identifies which variant a Source is.
type Kind int

const (
	KindStatic Kind = iota + 1
	KindFile
	KindHTTP
)

func (k Kind) String() string {
	switch k {
	case KindStatic:
		return "static"
	case KindFile:
		return "file"
	case KindHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// Source produces the raw schedule text. previous is the last payload the
// caller accepted; sources that support conditional requests return it
// unchanged when the remote has not changed.
//
// Errors are classified with the fault package: recoverable errors mean the
// caller should keep previous and try again later.
type Source interface {
	Obtain(ctx context.Context, previous string) (string, error)
	Kind() Kind
	Describe() string
}

// New picks the source variant for cfg. Precedence: a file override from the
// command line, then a pinned static response, then HTTP.
func New(cfg *config.Config, fileOverride string, fsys afero.Fs) (Source, error) {
	if cfg == nil {
		return nil, errors.New("source: config is nil")
	}
	if fileOverride != "" {
		if fsys == nil {
			fsys = afero.NewOsFs()
		}
		return &File{Path: fileOverride, Fs: fsys}, nil
	}
	if r := cfg.Fetch.Response; r != nil {
		return &Static{Code: r.Code, Content: r.Content}, nil
	}
	if cfg.Fetch.URL == "" {
		return nil, errors.New("source: fetch.url is empty and no fetch.response or --file was given")
	}

	headers, err := config.ResolveHeaders(cfg.Fetch.Headers)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	timeout, err := cfg.FetchTimeout()
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	return NewHTTP(cfg.Fetch.URL, headers, timeout), nil
}
