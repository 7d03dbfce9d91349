package db

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/incident-comms/bot/internal/config"
	"github.com/incident-comms/bot/internal/model"
)

// MemoryStore - 프로세스 메모리에 레코드를 보관하는 저장소 (개발/테스트용)
type MemoryStore struct {
	mu      sync.RWMutex
	records []model.IncidentRecord
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Backend() string {
	return config.StoreMemory
}

// SaveIncidentMessage - 레코드 복사본 저장
func (s *MemoryStore) SaveIncidentMessage(_ context.Context, record model.IncidentRecord) (*model.SavedRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return &model.SavedRecord{ObjectID: uuid.NewString(), CreatedAt: s.now().UTC()}, nil
}

// Records - 저장 순서대로 레코드 복사본 반환
func (s *MemoryStore) Records() []model.IncidentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.IncidentRecord(nil), s.records...)
}
