package event

// NoTick marks an absent tick reference. It is never renumbered.
const NoTick = -1

// TickMap is a total mapping from an old tick index to a new one.
type TickMap func(tick int) int

// Identity leaves every tick unchanged.
func Identity() TickMap {
	return func(tick int) int { return tick }
}

// Offset shifts every tick by n.
func Offset(n int) TickMap {
	return func(tick int) int { return tick + n }
}

// Table renumbers the ticks present in m and leaves all others unchanged.
// The map is copied.
func Table(m map[int]int) TickMap {
	table := make(map[int]int, len(m))
	for k, v := range m {
		table[k] = v
	}
	return func(tick int) int {
		if to, ok := table[tick]; ok {
			return to
		}
		return tick
	}
}

// Compose returns the mapping that applies first and then next.
func Compose(first, next TickMap) TickMap {
	return func(tick int) int { return next(first(tick)) }
}

// Apply maps a tick. NoTick is returned unchanged.
func (m TickMap) Apply(tick int) int {
	if tick == NoTick || m == nil {
		return tick
	}
	return m(tick)
}

func (m TickMap) applyAll(ticks []int) []int {
	if ticks == nil {
		return nil
	}
	out := make([]int, len(ticks))
	for i, t := range ticks {
		out[i] = m.Apply(t)
	}
	return out
}

// Shift moves an event, and every tick it references, by delta ticks.
func Shift(e Event, delta int) Event {
	if delta == 0 {
		return e
	}
	return e.Retick(Offset(delta))
}
