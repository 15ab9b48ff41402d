package sensor

// Source is anything that reports a proximity magnitude.
type Source interface {
	Read() int
}

// Max reports the highest reading of its sources, so a software trigger
// works next to a physical sensor.
type Max []Source

func (m Max) Read() int {
	best := 0
	for _, s := range m {
		if v := s.Read(); v > best {
			best = v
		}
	}
	return best
}
