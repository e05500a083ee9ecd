package service

const hashCoefficient uint32 = 65599

// Hash computes the 65599 string hash used for service and method ids.
// Arithmetic wraps at 32 bits.
func Hash(name string) uint32 {
	hash := uint32(len(name))
	coefficient := hashCoefficient
	for i := 0; i < len(name); i++ {
		hash += coefficient * uint32(name[i])
		coefficient *= hashCoefficient
	}
	return hash
}
