package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

const (
	keyPrefix      = "/rpc-endpoint/channels/"
	requestTimeout = 5 * time.Second
)

// EtcdRegistry implements the Registry interface using etcd v3.
//
// etcd is used as a "distributed phonebook" for channels:
//
//	Key:   /rpc-endpoint/channels/{ChannelID}/{Addr}
//	Value: JSON-encoded ChannelInstance
//
// Registration uses TTL-based leases: if the peer serving a channel crashes,
// the lease expires and the entry is removed automatically.
type EtcdRegistry struct {
	client *clientv3.Client // thread-safe, shared across goroutines
	logger *zap.Logger
	ctx    context.Context // cancelled by Close; scopes keepalives and watches
	cancel context.CancelFunc
}

// NewEtcdRegistry creates a new registry connected to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: requestTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &EtcdRegistry{client: c, logger: logger, ctx: ctx, cancel: cancel}, nil
}

func channelPrefix(channelID uint32) string {
	return keyPrefix + strconv.FormatUint(uint64(channelID), 10) + "/"
}

// Register adds a channel instance to etcd with a TTL lease.
//
// Flow:
//  1. Create a lease with the given TTL (e.g., 10 seconds)
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to automatically renew the lease until Close
//
// The lease id stays local so one EtcdRegistry can register many instances.
func (r *EtcdRegistry) Register(instance ChannelInstance, ttl int64) error {
	ctx, cancel := context.WithTimeout(r.ctx, requestTimeout)
	defer cancel()

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: granting lease: %w", err)
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	key := channelPrefix(instance.ChannelID) + instance.Addr
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: writing %s: %w", key, err)
	}

	ch, err := r.client.KeepAlive(r.ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keepalive: %w", err)
	}

	// Consume KeepAlive responses to prevent the channel from filling up
	go func() {
		for range ch {
		}
		r.logger.Debug("lease keepalive stopped", zap.String("key", key))
	}()
	return nil
}

// Deregister removes a channel instance from etcd.
func (r *EtcdRegistry) Deregister(channelID uint32, addr string) error {
	ctx, cancel := context.WithTimeout(r.ctx, requestTimeout)
	defer cancel()
	_, err := r.client.Delete(ctx, channelPrefix(channelID)+addr)
	return err
}

// Discover returns all currently registered instances for a channel.
func (r *EtcdRegistry) Discover(channelID uint32) ([]ChannelInstance, error) {
	ctx, cancel := context.WithTimeout(r.ctx, requestTimeout)
	defer cancel()

	resp, err := r.client.Get(ctx, channelPrefix(channelID), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]ChannelInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance ChannelInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	return instances, nil
}

// Channels lists every channel id with at least one registered instance.
func (r *EtcdRegistry) Channels() ([]uint32, error) {
	ctx, cancel := context.WithTimeout(r.ctx, requestTimeout)
	defer cancel()

	resp, err := r.client.Get(ctx, keyPrefix, clientv3.WithPrefix(), clientv3.WithKeysOnly())
	if err != nil {
		return nil, err
	}
	return parseChannelIDs(resp.Kvs), nil
}

// Watch monitors a channel prefix in etcd and emits the updated instance list
// whenever it changes (new registrations, deregistrations, lease expirations).
// The returned channel is closed by Close.
func (r *EtcdRegistry) Watch(channelID uint32) <-chan []ChannelInstance {
	ch := make(chan []ChannelInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(r.ctx, channelPrefix(channelID), clientv3.WithPrefix())
		for range watchChan {
			// Re-fetch the full list; simpler than applying individual events.
			instances, err := r.Discover(channelID)
			if err != nil && err != ErrNoInstances {
				r.logger.Warn("refreshing watched channel", zap.Uint32("channel", channelID), zap.Error(err))
				continue
			}
			select {
			case ch <- instances:
			case <-r.ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Close stops keepalives and watches and closes the etcd client.
func (r *EtcdRegistry) Close() error {
	r.cancel()
	return r.client.Close()
}

// parseChannelIDs extracts the distinct channel ids from
// /rpc-endpoint/channels/{id}/{addr} keys, ascending.
func parseChannelIDs(kvs []*mvccpb.KeyValue) []uint32 {
	seen := make(map[uint32]bool)
	for _, kv := range kvs {
		rest := strings.TrimPrefix(string(kv.Key), keyPrefix)
		idPart, _, ok := strings.Cut(rest, "/")
		if !ok {
			continue
		}
		id, err := strconv.ParseUint(idPart, 10, 32)
		if err != nil {
			continue
		}
		seen[uint32(id)] = true
	}
	ids := make([]uint32, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
