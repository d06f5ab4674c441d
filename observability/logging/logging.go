package logging

import (
	"encoding/hex"
	"log/slog"
	"os"
	"strings"
)

// levelEnv selects the minimum log level for the daemon.
const levelEnv = "BENEVAULT_LOG_LEVEL"

// Setup configures process-wide structured logging for the vault daemon.
// Output is one JSON object per line on stdout, tagged with the service name
// and, when provided, the deployment environment. The minimum level comes
// from BENEVAULT_LOG_LEVEL (debug, info, warn, error).
func Setup(service, env string) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: LevelFromEnv(),
	})
	logger := slog.New(handler).With(slog.String("service", strings.TrimSpace(service)))
	if env = strings.TrimSpace(env); env != "" {
		logger = logger.With(slog.String("env", env))
	}
	slog.SetDefault(logger)
	return logger
}

// LevelFromEnv parses BENEVAULT_LOG_LEVEL. Unknown or empty values fall back
// to info.
func LevelFromEnv() slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(levelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Abbreviate renders a ledger address for log output with the middle elided:
// the first and last four bytes are enough to tell accounts apart without
// filling every line with 40 hex digits.
func Abbreviate(addr [20]byte) string {
	full := hex.EncodeToString(addr[:])
	return "0x" + full[:8] + ".." + full[len(full)-8:]
}

// Address returns a slog attribute carrying the abbreviated address.
func Address(key string, addr [20]byte) slog.Attr {
	return slog.String(key, Abbreviate(addr))
}
