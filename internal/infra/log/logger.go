package log

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger создаёт настроенный zerolog. Если указан файл, логи дублируются в него.
func NewLogger(appEnv, file string) (zerolog.Logger, io.Closer, error) {
	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	var closer io.Closer = io.NopCloser(nil)
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level), closer, fmt.Errorf("открытие лог-файла: %w", err)
		}
		out = zerolog.MultiLevelWriter(os.Stdout, f)
		closer = f
	}
	logger := zerolog.New(out).With().Timestamp().Logger().Level(level)
	return logger, closer, nil
}
