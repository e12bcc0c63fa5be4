package ingest

// unwrapper extends a wrapping counter of a given bit width to 64 bits.
// Values less than half a period behind the highest one seen are taken as
// late arrivals, not as a wrap.
type unwrapper struct {
	bits    uint
	highest int64
	started bool
}

func (u *unwrapper) unwrap(v uint32) int64 {
	if !u.started {
		u.started = true
		u.highest = int64(v)
		return u.highest
	}

	period := int64(1) << u.bits
	half := period / 2
	delta := int64(v) - u.highest&(period-1)
	switch {
	case delta > half:
		delta -= period
	case delta < -half:
		delta += period
	}

	ext := u.highest + delta
	if ext > u.highest {
		u.highest = ext
	}
	return ext
}

func (u *unwrapper) reset() {
	u.started = false
	u.highest = 0
}
