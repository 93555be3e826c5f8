package di

import (
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ProvideLogger creates a new zerolog.Logger configured for the runtime environment.
// In a terminal it uses console format with pretty printing; when output is
// redirected it uses JSON format.
func ProvideLogger() zerolog.Logger {
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			Level(zerolog.InfoLevel).
			With().
			Timestamp().
			Logger()
	}

	return zerolog.New(os.Stdout).
		Level(zerolog.InfoLevel).
		With().
		Timestamp().
		Logger()
}
