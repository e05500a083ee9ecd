package loadbalance

import (
	"sync/atomic"

	"rpc-endpoint/registry"
)

// RoundRobinBalancer cycles through instances in order.
// Uses an atomic counter for lock-free, goroutine-safe operation.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(instances []registry.ChannelInstance) (*registry.ChannelInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := (b.counter.Add(1) - 1) % uint64(len(instances))
	inst := instances[index]
	return &inst, nil
}

func (b *RoundRobinBalancer) Name() string {
	return "RoundRobin"
}
