// Package loadbalance picks which instance of a channel a client dials.
//
// Three strategies are implemented:
//   - RoundRobin:      equal-capacity peers
//   - WeightedRandom:  heterogeneous peers (different CPU/memory)
//   - ConsistentHash:  sticky placement, the same key always lands on the same peer
package loadbalance

import (
	"errors"

	"rpc-endpoint/registry"
)

// ErrNoInstances is returned by Pick when there is nothing to choose from.
var ErrNoInstances = errors.New("loadbalance: no instances available")

// Balancer is the interface for load balancing strategies.
// The client calls Pick() once per channel when it dials.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Must be goroutine-safe.
	Pick(instances []registry.ChannelInstance) (*registry.ChannelInstance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}
