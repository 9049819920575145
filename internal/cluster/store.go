package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"path"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	consul "github.com/hashicorp/consul/api"
)

const DefaultPrefix = "poipoi"

// PropertyStore keeps room-shared properties in the Consul KV store. Writes
// are last-writer-wins, which is all the single room authority needs.
type PropertyStore struct {
	kv     *consul.KV
	prefix string
}

var _ room.PropertyStore = (*PropertyStore)(nil)

func NewPropertyStore(client *consul.Client, prefix string) *PropertyStore {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &PropertyStore{kv: client.KV(), prefix: prefix}
}

func (s *PropertyStore) key(code string) string {
	return path.Join(s.prefix, "rooms", code, "props")
}

func (s *PropertyStore) SaveRoom(ctx context.Context, code string, props types.RoomProps) error {
	data, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("encode room props: %w", err)
	}
	pair := &consul.KVPair{Key: s.key(code), Value: data}
	if _, err := s.kv.Put(pair, (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("put room props %s: %w", code, err)
	}
	return nil
}

func (s *PropertyStore) LoadRoom(ctx context.Context, code string) (types.RoomProps, bool, error) {
	pair, _, err := s.kv.Get(s.key(code), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return types.RoomProps{}, false, fmt.Errorf("get room props %s: %w", code, err)
	}
	if pair == nil {
		return types.RoomProps{}, false, nil
	}
	var props types.RoomProps
	if err := json.Unmarshal(pair.Value, &props); err != nil {
		return types.RoomProps{}, false, fmt.Errorf("decode room props %s: %w", code, err)
	}
	return props, true, nil
}

func (s *PropertyStore) DeleteRoom(ctx context.Context, code string) error {
	if _, err := s.kv.Delete(s.key(code), (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("delete room props %s: %w", code, err)
	}
	return nil
}
