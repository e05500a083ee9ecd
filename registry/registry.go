// Package registry is the channel directory a client is built from.
//
// Each channel id maps to one or more instances (addresses of peers that
// serve that channel). A client discovers the channels it should open, picks
// one instance per channel with a load balancer, and dials it.
package registry

import (
	"errors"
	"sort"
	"sync"
)

// ErrNoInstances is returned by Discover when a channel has no instances.
var ErrNoInstances = errors.New("registry: no instances for channel")

type ChannelInstance struct {
	ChannelID uint32
	Addr      string
	Weight    int // Weight for load balancing
	Version   string
}

type Registry interface {
	Register(instance ChannelInstance, ttl int64) error
	Deregister(channelID uint32, addr string) error
	Discover(channelID uint32) ([]ChannelInstance, error)
	// Channels lists every channel id with at least one instance, ascending.
	Channels() ([]uint32, error)
	Watch(channelID uint32) <-chan []ChannelInstance
}

// MemoryRegistry is an in-process Registry for static configuration and
// tests. TTLs are ignored.
type MemoryRegistry struct {
	mu        sync.Mutex
	instances map[uint32][]ChannelInstance
	watchers  map[uint32][]chan []ChannelInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		instances: make(map[uint32][]ChannelInstance),
		watchers:  make(map[uint32][]chan []ChannelInstance),
	}
}

func (m *MemoryRegistry) Register(instance ChannelInstance, ttl int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[instance.ChannelID]
	for i, inst := range insts {
		if inst.Addr == instance.Addr {
			insts[i] = instance
			m.notifyLocked(instance.ChannelID)
			return nil
		}
	}
	m.instances[instance.ChannelID] = append(insts, instance)
	m.notifyLocked(instance.ChannelID)
	return nil
}

func (m *MemoryRegistry) Deregister(channelID uint32, addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[channelID]
	for i, inst := range insts {
		if inst.Addr == addr {
			m.instances[channelID] = append(insts[:i:i], insts[i+1:]...)
			if len(m.instances[channelID]) == 0 {
				delete(m.instances, channelID)
			}
			m.notifyLocked(channelID)
			break
		}
	}
	return nil
}

func (m *MemoryRegistry) Discover(channelID uint32) ([]ChannelInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	insts := m.instances[channelID]
	if len(insts) == 0 {
		return nil, ErrNoInstances
	}
	return append([]ChannelInstance(nil), insts...), nil
}

func (m *MemoryRegistry) Channels() ([]uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]uint32, 0, len(m.instances))
	for id := range m.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// Watch emits the instance list after every change to channelID. Updates
// are dropped if the receiver falls behind by more than one.
func (m *MemoryRegistry) Watch(channelID uint32) <-chan []ChannelInstance {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan []ChannelInstance, 1)
	m.watchers[channelID] = append(m.watchers[channelID], ch)
	return ch
}

func (m *MemoryRegistry) notifyLocked(channelID uint32) {
	snapshot := append([]ChannelInstance(nil), m.instances[channelID]...)
	for _, ch := range m.watchers[channelID] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
