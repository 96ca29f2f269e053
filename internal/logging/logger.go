package logging

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

var (
	// Logger is the global structured logger instance
	Logger *slog.Logger
)

// Init initializes the global structured logger writing JSON to stdout.
func Init(level slog.Level) {
	InitWithWriter(level, os.Stdout)
}

// InitWithWriter is like Init but writes to w.
func InitWithWriter(level slog.Level, w io.Writer) {
	opts := &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Format time as ISO8601
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.Format(time.RFC3339))
				}
			}
			return a
		},
	}

	handler := slog.NewJSONHandler(w, opts)
	Logger = slog.New(handler)
	slog.SetDefault(Logger)
}

// ParseLevel converts a string log level to slog.Level
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// RedactURL removes secrets from URL logs while retaining debugging value.
// It strips userinfo and masks query parameter values.
func RedactURL(rawURL string) string {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return ""
	}

	parsed, err := url.Parse(rawURL)
	if err != nil || parsed == nil {
		return rawURL
	}

	parsed.User = nil

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for key := range query {
			query.Set(key, "***")
		}
		parsed.RawQuery = query.Encode()
	}

	return parsed.String()
}

// LogTransferStart logs the start of a single transfer attempt
func LogTransferStart(url, path string, attempt int) {
	if Logger == nil {
		return
	}
	Logger.Debug("transfer started",
		"event", "transfer_start",
		"url", RedactURL(url),
		"path", path,
		"attempt", attempt)
}

// LogTransferComplete logs a verified write
func LogTransferComplete(url, path string, bytes int) {
	if Logger == nil {
		return
	}
	Logger.Debug("transfer complete",
		"event", "transfer_complete",
		"url", RedactURL(url),
		"path", path,
		"bytes", bytes)
}

// LogTransferError logs a failed transfer attempt
func LogTransferError(url, path string, attempt int, err error) {
	if Logger == nil {
		return
	}
	Logger.Warn("transfer failed",
		"event", "transfer_error",
		"url", RedactURL(url),
		"path", path,
		"attempt", attempt,
		"error", err)
}

// LogRoundStart logs the dispatch of a retry round
func LogRoundStart(round, pending int) {
	if Logger == nil {
		return
	}
	Logger.Info("round started",
		"event", "round_start",
		"round", round,
		"pending", pending)
}

// LogRoundComplete logs the barrier crossing of a round
func LogRoundComplete(round, dispatched, failed int, elapsed time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Info("round complete",
		"event", "round_complete",
		"round", round,
		"dispatched", dispatched,
		"failed", failed,
		"duration_ms", elapsed.Milliseconds())
}

// LogEntryDropped logs an entry that will not be retried again
func LogEntryDropped(url, path string, attempts int, err error) {
	if Logger == nil {
		return
	}
	Logger.Error("entry permanently failed",
		"event", "entry_dropped",
		"url", RedactURL(url),
		"path", path,
		"attempts", attempts,
		"error", err)
}

// LogPathConflict logs a second candidate for an already claimed destination
// whose expected hash differs from the kept one
func LogPathConflict(path, keptHash, url, droppedHash string) {
	if Logger == nil {
		return
	}
	Logger.Warn("conflicting entries for one path",
		"event", "path_conflict",
		"path", path,
		"kept_hash", keptHash,
		"dropped_url", RedactURL(url),
		"dropped_hash", droppedHash)
}

// LogAuditMismatch logs a file that failed the post-install consistency check
func LogAuditMismatch(kind, path, expected string) {
	if Logger == nil {
		return
	}
	Logger.Warn("audit mismatch",
		"event", "audit_mismatch",
		"kind", kind,
		"path", path,
		"expected_hash", expected)
}

// LogInstallStart logs the beginning of an installation run
func LogInstallStart(runID, versionID, root string) {
	if Logger == nil {
		return
	}
	Logger.Info("install started",
		"event", "install_start",
		"run_id", runID,
		"version", versionID,
		"root", root)
}

// LogInstallComplete logs the outcome of an installation run
func LogInstallComplete(runID, versionID string, succeeded, failed, mismatches int, elapsed time.Duration) {
	if Logger == nil {
		return
	}
	Logger.Info("install complete",
		"event", "install_complete",
		"run_id", runID,
		"version", versionID,
		"succeeded", succeeded,
		"failed", failed,
		"audit_mismatches", mismatches,
		"duration_ms", elapsed.Milliseconds())
}

// LogDBOperation logs database operations
func LogDBOperation(operation string, id string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error("database operation failed",
			"event", "db_operation_error",
			"operation", operation,
			"id", id,
			"error", err)
	} else {
		Logger.Info("database operation",
			"event", "db_operation",
			"operation", operation,
			"id", id)
	}
}

// LogDBCreate logs database record creation
func LogDBCreate(id, versionID, root string) {
	if Logger == nil {
		return
	}
	Logger.Info("database record created",
		"event", "db_create",
		"id", id,
		"version", versionID,
		"root", root)
}

// LogHTTPRequest logs HTTP request handling
func LogHTTPRequest(method, path, remoteAddr string, duration time.Duration, status int) {
	if Logger == nil {
		return
	}
	Logger.Info("http request",
		"event", "http_request",
		"method", method,
		"path", path,
		"remote_addr", remoteAddr,
		"duration_ms", duration.Milliseconds(),
		"status", status)
}

// LogServerStart logs server startup
func LogServerStart(addr string, config map[string]any) {
	if Logger == nil {
		return
	}
	attrs := []any{
		"event", "server_start",
		"addr", addr,
	}
	for k, v := range config {
		attrs = append(attrs, k, v)
	}
	Logger.Info("server started", attrs...)
}

// LogServerShutdown logs server shutdown events
func LogServerShutdown(msg string, err error) {
	if Logger == nil {
		return
	}
	if err != nil {
		Logger.Error(msg,
			"event", "server_shutdown_error",
			"error", err)
	} else {
		Logger.Info(msg,
			"event", "server_shutdown")
	}
}

// With returns a logger with additional context
func With(ctx context.Context, attrs ...any) *slog.Logger {
	if Logger == nil {
		return slog.Default().With(attrs...)
	}
	return Logger.With(attrs...)
}
