package badger

import (
	"fmt"
	"log/slog"
	"os"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// loggerAdapter routes badger's internal logging through slog.
type loggerAdapter struct {
	logger *slog.Logger
}

var _ badgerdb.Logger = (*loggerAdapter)(nil)

func (l *loggerAdapter) Errorf(msg string, items ...any) {
	l.logger.Error(fmt.Sprintf(msg, items...))
}

func (l *loggerAdapter) Warningf(msg string, items ...any) {
	l.logger.Warn(fmt.Sprintf(msg, items...))
}

func (l *loggerAdapter) Infof(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

func (l *loggerAdapter) Debugf(msg string, items ...any) {
	l.logger.Debug(fmt.Sprintf(msg, items...))
}

// Open opens a badger database at path, or an in-memory one when inMemory is
// set. The directory is created when missing.
func Open(path string, inMemory bool, logger *slog.Logger) (*badgerdb.DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var opts badgerdb.Options
	if inMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return nil, fmt.Errorf("create badger dir failed: %w", err)
		}
		opts = badgerdb.DefaultOptions(path)
	}
	opts.Logger = &loggerAdapter{logger: logger.With("component", "badger")}
	opts.Compression = options.None

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger failed: %w", err)
	}
	return db, nil
}
