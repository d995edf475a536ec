package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// SyncLogDir is where per-run sync logs are written, relative to the vault root
const SyncLogDir = ".vault-graph/logs"

// New builds a logger for the given environment
func New(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "production" {
		config = zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	} else {
		config = zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return config.Build()
}

// Sync flushes any buffered log entries
func Sync(log *zap.Logger) {
	if log != nil {
		_ = log.Sync()
	}
}

// OrNop returns log, or a no-op logger when log is nil
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// NewSyncLog tees base into a per-run file under the vault.
// The file is best-effort: if neither the vault nor the temp dir is writable,
// base is returned unchanged along with a no-op closer.
func NewSyncLog(base *zap.Logger, vaultPath string) (*zap.Logger, func() error) {
	base = OrNop(base)
	name := fmt.Sprintf("graph_sync_%s.log", time.Now().UTC().Format("20060102_150405"))

	candidates := []string{
		filepath.Join(vaultPath, SyncLogDir),
		filepath.Join(os.TempDir(), "vault-graph-logs"),
	}
	for _, dir := range candidates {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			continue
		}

		encCfg := zap.NewProductionEncoderConfig()
		encCfg.TimeKey = "timestamp"
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		fileCore := zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), zap.DebugLevel)

		teed := base.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
			return zapcore.NewTee(c, fileCore)
		}))
		teed.Debug("Sync log opened", zap.String("path", path))
		return teed, f.Close
	}

	base.Warn("Could not open sync log file, logging to base logger only", zap.String("vault", vaultPath))
	return base, func() error { return nil }
}
