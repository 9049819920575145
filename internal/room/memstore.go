package room

import (
	"context"
	"sync"

	"github.com/DoyleJ11/poipoi-backend/pkg/types"
)

// MemoryStore is the default PropertyStore: last writer wins, process local.
type MemoryStore struct {
	mu    sync.Mutex
	rooms map[string]types.RoomProps
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rooms: make(map[string]types.RoomProps)}
}

func (s *MemoryStore) SaveRoom(_ context.Context, code string, props types.RoomProps) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[code] = props
	return nil
}

func (s *MemoryStore) LoadRoom(_ context.Context, code string) (types.RoomProps, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	props, ok := s.rooms[code]
	return props, ok, nil
}

func (s *MemoryStore) DeleteRoom(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, code)
	return nil
}
