package permission

// Mask64 is a set of up to 64 permission bits. The highest bit is the root bit when
// the owning Registry reserves it.
type Mask64 uint64

func (m *Mask64) Has(bit int, rootReserved bool) bool {
	if bit < 0 || bit >= MaxBits {
		return false
	}

	if rootReserved {
		// root bit = highest bit
		if (*m & (1 << (MaxBits - 1))) != 0 {
			return true
		}
	}

	return (*m & (1 << bit)) != 0
}

func (m *Mask64) Set(bit int) {
	if bit < 0 || bit >= MaxBits {
		return
	}
	*m |= (1 << bit)
}

func (m *Mask64) Raw() uint64 {
	return uint64(*m)
}
