package node

import (
	"fmt"
	"io"
	"strings"

	"github.com/decred/slog"
)

// Subsystem tags used in log lines.
const (
	SubsysNode  = "PORV"
	SubsysHTTP  = "HTTP"
	SubsysStore = "STOR"
)

// Loggers holds the subsystem loggers of one service, all writing to a
// single backend.
type Loggers struct {
	Node  slog.Logger
	HTTP  slog.Logger
	Store slog.Logger
}

func NewLoggers(w io.Writer, level string) (*Loggers, error) {
	lvl, ok := slog.LevelFromString(strings.ToLower(strings.TrimSpace(level)))
	if !ok {
		return nil, fmt.Errorf("invalid log_level %q", level)
	}
	backend := slog.NewBackend(w)
	l := &Loggers{
		Node:  backend.Logger(SubsysNode),
		HTTP:  backend.Logger(SubsysHTTP),
		Store: backend.Logger(SubsysStore),
	}
	for _, lg := range []slog.Logger{l.Node, l.HTTP, l.Store} {
		lg.SetLevel(lvl)
	}
	return l, nil
}

// DisabledLoggers discards everything.
func DisabledLoggers() *Loggers {
	return &Loggers{Node: slog.Disabled, HTTP: slog.Disabled, Store: slog.Disabled}
}
