package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"sync"

	"rpc-endpoint/registry"
)

const defaultReplicas = 100

// ConsistentHashBalancer maps keys to instances using a hash ring.
// The same key always maps to the same instance (until the ring changes),
// so a client identified by Key keeps dialing the same peer of a channel.
//
// Virtual nodes: each real instance is mapped to N virtual nodes on the ring.
// Without virtual nodes, 3 instances might cluster together on the ring,
// causing uneven load distribution.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	              ╱       ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	              ╲       ╱
//	                ╲   ╱
type ConsistentHashBalancer struct {
	// Key is hashed by Pick. Empty means "" which is still a stable key.
	Key string

	mu       sync.RWMutex
	replicas int                                  // Virtual nodes per real instance
	ring     []uint32                             // Sorted hash values on the ring
	nodes    map[uint32]*registry.ChannelInstance // Hash value → instance mapping
}

// NewConsistentHashBalancer creates a hash ring with 100 virtual nodes per instance.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		Key:      key,
		replicas: defaultReplicas,
		nodes:    make(map[uint32]*registry.ChannelInstance),
	}
}

// Add places an instance onto the hash ring with N virtual nodes.
// Each virtual node is hashed from "{addr}#{i}".
func (b *ConsistentHashBalancer) Add(instance *registry.ChannelInstance) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.addLocked(instance)
}

func (b *ConsistentHashBalancer) addLocked(instance *registry.ChannelInstance) {
	for i := 0; i < b.replicas; i++ {
		hash := virtualNodeHash(instance.Addr, i)
		b.ring = append(b.ring, hash)
		b.nodes[hash] = instance
	}
	// Keep the ring sorted for binary search in Lookup()
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// Remove takes every virtual node of addr off the ring.
func (b *ConsistentHashBalancer) Remove(addr string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := 0; i < b.replicas; i++ {
		delete(b.nodes, virtualNodeHash(addr, i))
	}
	ring := b.ring[:0]
	for _, h := range b.ring {
		if _, ok := b.nodes[h]; ok {
			ring = append(ring, h)
		}
	}
	b.ring = ring
}

// Lookup finds the instance responsible for key.
// It hashes the key, then binary-searches for the first node >= hash on the ring.
// If the hash is larger than all nodes, it wraps around to the first node.
func (b *ConsistentHashBalancer) Lookup(key string) (*registry.ChannelInstance, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lookupLocked(key)
}

func (b *ConsistentHashBalancer) lookupLocked(key string) (*registry.ChannelInstance, error) {
	if len(b.ring) == 0 {
		return nil, ErrNoInstances
	}
	hash := crc32.ChecksumIEEE([]byte(key))

	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

// Pick rebuilds the ring from instances and looks up b.Key, so it satisfies
// Balancer for callers that only have the discovered list.
func (b *ConsistentHashBalancer) Pick(instances []registry.ChannelInstance) (*registry.ChannelInstance, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ring = b.ring[:0]
	clear(b.nodes)
	for i := range instances {
		inst := instances[i]
		b.addLocked(&inst)
	}
	return b.lookupLocked(b.Key)
}

func (b *ConsistentHashBalancer) Name() string {
	return "ConsistentHash"
}

func virtualNodeHash(addr string, i int) uint32 {
	return crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", addr, i)))
}
