package cluster

import (
	"context"
	"fmt"
	"path"

	"github.com/DoyleJ11/poipoi-backend/internal/hub"
	consul "github.com/hashicorp/consul/api"
)

// Directory records which server hosts each room so a client can be sent
// to the right instance.
type Directory struct {
	kv        *consul.KV
	prefix    string
	advertise string
}

var _ hub.Directory = (*Directory)(nil)

// NewDirectory registers rooms under prefix as hosted at advertise, the
// websocket URL clients should dial.
func NewDirectory(client *consul.Client, prefix, advertise string) *Directory {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Directory{kv: client.KV(), prefix: prefix, advertise: advertise}
}

func (d *Directory) key(code string) string {
	return path.Join(d.prefix, "directory", code)
}

func (d *Directory) Register(ctx context.Context, code string) error {
	pair := &consul.KVPair{Key: d.key(code), Value: []byte(d.advertise)}
	if _, err := d.kv.Put(pair, (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("register room %s: %w", code, err)
	}
	return nil
}

func (d *Directory) Deregister(ctx context.Context, code string) error {
	if _, err := d.kv.Delete(d.key(code), (&consul.WriteOptions{}).WithContext(ctx)); err != nil {
		return fmt.Errorf("deregister room %s: %w", code, err)
	}
	return nil
}

// Lookup returns the server hosting code.
func (d *Directory) Lookup(ctx context.Context, code string) (string, bool, error) {
	pair, _, err := d.kv.Get(d.key(code), (&consul.QueryOptions{}).WithContext(ctx))
	if err != nil {
		return "", false, fmt.Errorf("lookup room %s: %w", code, err)
	}
	if pair == nil {
		return "", false, nil
	}
	return string(pair.Value), true, nil
}
