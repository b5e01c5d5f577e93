package source

import (
	"context"

	appLog "shedcmd/internal/log"
)

// Static returns a pinned payload without any I/O. Code is informational.
type Static struct {
	Code    int
	Content string
}

func (s *Static) Obtain(_ context.Context, _ string) (string, error) {
	appLog.Debug("schedule from static response", "code", s.Code, "bytes", len(s.Content))
	return s.Content, nil
}

func (s *Static) Kind() Kind { return KindStatic }

func (s *Static) Describe() string { return "static response" }
