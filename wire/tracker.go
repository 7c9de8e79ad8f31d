package wire

// Class is the arrival classification of a packet sequence number.
type Class int

const (
	// First is the very first packet observed on the stream.
	First Class = iota
	// OnTime is the next expected sequence number.
	OnTime
	// Duplicate was already accepted before.
	Duplicate
	// Late arrived after its slot had already passed.
	Late
	// Gap skipped ahead of the expected sequence, the skipped
	// packets are presumed lost.
	Gap
)

// Observation is the result of classifying one arriving packet.
type Observation struct {
	Class Class
	// Lost is the number of packets presumed lost, only set for Gap.
	Lost uint32
}

const (
	// seenWindow is how far around the high-water mark accepted
	// sequence numbers are retained for duplicate detection.
	seenWindow = 500
	// compactEvery bounds memory by compacting the seen set
	// after this many insertions.
	compactEvery = 1000
)

// Tracker classifies arriving sequence numbers as on-time, late,
// duplicate or indicating a gap. Loss is inferred only from sequence
// gaps, never from timeouts; timeout based decisions belong to the
// jitter buffer which knows about playback urgency.
//
// Tracker is not safe for concurrent use, it is owned by the receive
// loop.
type Tracker struct {
	expected uint32
	started  bool
	high     uint32
	seen     map[uint32]struct{}
	inserts  int
}

func NewTracker() *Tracker {
	return &Tracker{
		seen: make(map[uint32]struct{}),
	}
}

// seqBefore reports whether a comes before b, treating sequence
// numbers as a wrapping 32 bit space.
func seqBefore(a, b uint32) bool {
	return int32(a-b) < 0
}

// Observe classifies one arriving sequence number and advances the
// tracker state.
func (t *Tracker) Observe(seq uint32) Observation {
	if _, ok := t.seen[seq]; ok {
		return Observation{Class: Duplicate}
	}

	obs := Observation{}
	switch {
	case !t.started:
		t.started = true
		t.expected = seq + 1
		obs.Class = First
	case seqBefore(seq, t.expected):
		// arrived after its slot passed, expected does not move back
		obs.Class = Late
	case seq == t.expected:
		t.expected++
		obs.Class = OnTime
	default:
		obs.Class = Gap
		obs.Lost = seq - t.expected
		t.expected = seq + 1
	}

	t.insert(seq)
	return obs
}

// Reset returns the tracker to its initial state for a stream restart.
func (t *Tracker) Reset() {
	t.started = false
	t.expected = 0
	t.high = 0
	t.inserts = 0
	t.seen = make(map[uint32]struct{})
}

func (t *Tracker) insert(seq uint32) {
	t.seen[seq] = struct{}{}
	if seqBefore(t.high, seq) {
		t.high = seq
	}

	t.inserts++
	if t.inserts >= compactEvery {
		t.inserts = 0
		t.compact()
	}
}

// compact drops seen entries outside the retention window around the
// high-water mark so the set stays bounded.
func (t *Tracker) compact() {
	for seq := range t.seen {
		d := int32(t.high - seq)
		if d > seenWindow || d < -seenWindow {
			delete(t.seen, seq)
		}
	}
}
