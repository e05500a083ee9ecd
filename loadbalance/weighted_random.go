package loadbalance

import (
	"math/rand/v2"

	"rpc-endpoint/registry"
)

// WeightedRandomBalancer picks an instance with probability proportional to
// its Weight. Non-positive weights count as zero; if every weight is zero the
// pick is uniform.
type WeightedRandomBalancer struct{}

func (b *WeightedRandomBalancer) Pick(instances []registry.ChannelInstance) (*registry.ChannelInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	// 计算总权重
	totalWeight := 0
	for _, v := range instances {
		totalWeight += max(v.Weight, 0)
	}
	if totalWeight == 0 {
		inst := instances[rand.IntN(len(instances))]
		return &inst, nil
	}

	// 生成一个随机数，范围是0到总权重
	r := rand.IntN(totalWeight)
	for _, v := range instances {
		r -= max(v.Weight, 0)
		if r < 0 {
			return &v, nil
		}
	}

	inst := instances[len(instances)-1]
	return &inst, nil
}

func (b *WeightedRandomBalancer) Name() string {
	return "WeightedRandom"
}
