package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"metasol_bot/internal/models"
)

// FileStore keeps one JSON array file per user per kind under a data
// directory: positions_<id>.json, limits_<id>.json, dca_<id>.json.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(kind Kind, userID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d.json", kind, userID))
}

func (s *FileStore) LoadPositions(userID int64) ([]models.Position, error) {
	var out []models.Position
	if err := s.load(KindPositions, userID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SavePositions(userID int64, positions []models.Position) error {
	return s.save(KindPositions, userID, positions)
}

func (s *FileStore) LoadLimitOrders(userID int64) ([]models.LimitOrder, error) {
	var out []models.LimitOrder
	if err := s.load(KindLimits, userID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SaveLimitOrders(userID int64, orders []models.LimitOrder) error {
	return s.save(KindLimits, userID, orders)
}

func (s *FileStore) LoadSchedules(userID int64) ([]models.DcaSchedule, error) {
	var out []models.DcaSchedule
	if err := s.load(KindDca, userID, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileStore) SaveSchedules(userID int64, schedules []models.DcaSchedule) error {
	return s.save(KindDca, userID, schedules)
}

func (s *FileStore) Users(kind Kind) ([]int64, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read data dir: %w", err)
	}

	prefix := string(kind) + "_"
	var users []int64
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		idStr := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
		id, err := strconv.ParseInt(idStr, 10, 64)
		if err != nil {
			continue
		}
		users = append(users, id)
	}
	return users, nil
}

func (s *FileStore) load(kind Kind, userID int64, out interface{}) error {
	data, err := os.ReadFile(s.path(kind, userID))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s collection for %d: %w", kind, userID, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s collection for %d: %w", kind, userID, err)
	}
	return nil
}

func (s *FileStore) save(kind Kind, userID int64, records interface{}) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s collection for %d: %w", kind, userID, err)
	}
	if err := os.WriteFile(s.path(kind, userID), data, 0o644); err != nil {
		return fmt.Errorf("write %s collection for %d: %w", kind, userID, err)
	}
	return nil
}
