package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Role identifies which daemon process a logger belongs to.
type Role string

const (
	// RoleController identifies the shell-identity supervising process.
	RoleController Role = "controller"
	// RoleWorker identifies the system-identity privileged-spawn process.
	RoleWorker Role = "worker"
)

// New builds a zerolog.Logger for role that writes through a rotating file
// at path, duplicating output to stderr when attached to a terminal.
func New(role Role, path string) (zerolog.Logger, *Writer, error) {
	fw, err := NewWriter(path)
	if err != nil {
		return zerolog.Logger{}, nil, err
	}

	var out io.Writer = fw
	if isTerminal(os.Stderr) {
		out = NewMultiWriter(fw, NopCloser(os.Stderr))
	}

	logger := zerolog.New(out).With().
		Timestamp().
		Str("role", string(role)).
		Logger()

	return logger, fw, nil
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}

// WithService returns a child logger annotated with the given service name.
func WithService(l zerolog.Logger, service string) zerolog.Logger {
	return l.With().Str("service", service).Logger()
}
