package storage

import (
	"context"
	"fmt"
	"strings"

	logx "notifycenter/pkg/logx"
)

// Store is the persistence API used by the notification center.
type Store interface {
	LoadAlarm(ctx context.Context) (AlarmRecord, error)
	SaveAlarm(ctx context.Context, r AlarmRecord) error
	AppendDelivery(ctx context.Context, r DeliveryRecord) error
	// RecentDeliveries returns up to limit records, newest last.
	RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error)
	Close() error
}

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	switch driver {
	case "", "none", "memory":
		return NewMemory(), nil
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknown, driver)
	}
}
