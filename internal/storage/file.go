package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	logx "notifycenter/pkg/logx"
)

// fileStore is a dependency-free persistence backend.
//
// Files:
//   - <prefix>.alarm.json          (rewritten atomically on every change)
//   - <prefix>.deliveries.jsonl    (append-only JSON Lines)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	alarmPath    string
	alarm        AlarmRecord
	deliveryPath string
	deliveryFile *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	s := &fileStore{
		log:          log,
		alarmPath:    prefix + ".alarm.json",
		deliveryPath: prefix + ".deliveries.jsonl",
	}
	if err := loadAlarmFile(s.alarmPath, &s.alarm); err != nil && !errors.Is(err, os.ErrNotExist) {
		// A corrupt state file must not keep the service down; start idle.
		log.Warn("alarm state unreadable; starting idle", logx.String("path", s.alarmPath), logx.Err(err))
		s.alarm = AlarmRecord{}
	}

	df, err := os.OpenFile(s.deliveryPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	s.deliveryFile = df
	return s, nil
}

func (s *fileStore) LoadAlarm(ctx context.Context) (AlarmRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return AlarmRecord{}, ErrClosed
	}
	return s.alarm, nil
}

func (s *fileStore) SaveAlarm(ctx context.Context, r AlarmRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return ErrClosed
	}

	tmp := s.alarmPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(r); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.alarmPath); err != nil {
		return err
	}
	s.alarm = r
	return nil
}

func (s *fileStore) AppendDelivery(ctx context.Context, r DeliveryRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return ErrClosed
	}
	if err := json.NewEncoder(s.deliveryFile).Encode(r); err != nil {
		return err
	}
	return nil
}

func (s *fileStore) RecentDeliveries(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return nil, ErrClosed
	}

	f, err := os.Open(s.deliveryPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []DeliveryRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r DeliveryRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) > 2*limit {
			out = out[len(out)-limit:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return tail(out, limit), nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveryFile == nil {
		return nil
	}
	err := s.deliveryFile.Close()
	s.deliveryFile = nil
	return err
}

func loadAlarmFile(path string, out *AlarmRecord) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(out)
}
