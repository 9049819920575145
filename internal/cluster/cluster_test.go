package cluster

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/DoyleJ11/poipoi-backend/internal/room"
	"github.com/DoyleJ11/poipoi-backend/pkg/types"
	consul "github.com/hashicorp/consul/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConsul serves the slice of the agent HTTP API the package uses.
type fakeConsul struct {
	mu sync.Mutex
	kv map[string][]byte
}

func (f *fakeConsul) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-Consul-Index", "1")
	w.Header().Set("X-Consul-LastContact", "0")
	w.Header().Set("X-Consul-KnownLeader", "true")
	w.Header().Set("Content-Type", "application/json")

	if r.URL.Path == "/v1/status/leader" {
		_, _ = io.WriteString(w, `"127.0.0.1:8300"`)
		return
	}
	key, ok := strings.CutPrefix(r.URL.Path, "/v1/kv/")
	if !ok {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.kv[key] = body
		_, _ = io.WriteString(w, "true")
	case http.MethodDelete:
		delete(f.kv, key)
		_, _ = io.WriteString(w, "true")
	case http.MethodGet:
		v, ok := f.kv[key]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode([]consul.KVPair{{Key: key, Value: v, CreateIndex: 1, ModifyIndex: 1}})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeConsul) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.kv[key]
	return ok
}

func newFakeClient(t *testing.T) (*consul.Client, *fakeConsul) {
	t.Helper()
	fake := &fakeConsul{kv: map[string][]byte{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	client, err := NewClient(", "+strings.TrimPrefix(srv.URL, "http://"), nil)
	require.NoError(t, err)
	return client, fake
}

func TestNewClient_NoAgent(t *testing.T) {
	_, err := NewClient("", nil)
	require.Error(t, err)
}

func TestPropertyStore_RoundTrip(t *testing.T) {
	client, fake := newFakeClient(t)
	s := NewPropertyStore(client, "")
	ctx := context.Background()

	_, ok, err := s.LoadRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)

	want := types.RoomProps{MatchStarted: true, Practice: false, Open: false}
	require.NoError(t, s.SaveRoom(ctx, "ABC123", want))
	assert.True(t, fake.has("poipoi/rooms/ABC123/props"))

	got, ok, err := s.LoadRoom(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)

	require.NoError(t, s.DeleteRoom(ctx, "ABC123"))
	_, ok, err = s.LoadRoom(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPropertyStore_RoomRestoresProps(t *testing.T) {
	client, _ := newFakeClient(t)
	s := NewPropertyStore(client, "test")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, s.SaveRoom(ctx, "ROOM01", types.RoomProps{Practice: true, Open: true}))

	r := room.New(ctx, "ROOM01", room.WithStore(s))
	reply := make(chan types.RoomSnapshot, 1)
	r.Inbox() <- room.GetState{Reply: reply}
	snap := <-reply
	assert.True(t, snap.Room.Practice)
}

func TestDirectory(t *testing.T) {
	client, _ := newFakeClient(t)
	d := NewDirectory(client, "", "ws://node-a:8080/ws")
	ctx := context.Background()

	require.NoError(t, d.Register(ctx, "ABC123"))
	addr, ok, err := d.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ws://node-a:8080/ws", addr)

	require.NoError(t, d.Deregister(ctx, "ABC123"))
	_, ok, err = d.Lookup(ctx, "ABC123")
	require.NoError(t, err)
	assert.False(t, ok)
}
