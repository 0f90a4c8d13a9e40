package domain

// Option is a poll choice label. The set of options is fixed when the
// process starts.
type Option string

// Tally maps each option to its vote count.
type Tally map[Option]int64

func NewTally(options []Option) Tally {
	t := make(Tally, len(options))
	for _, opt := range options {
		t[opt] = 0
	}
	return t
}

func (t Tally) Clone() Tally {
	c := make(Tally, len(t))
	for opt, n := range t {
		c[opt] = n
	}
	return c
}

func (t Tally) Total() int64 {
	var total int64
	for _, n := range t {
		total += n
	}
	return total
}

// Snapshot is a point-in-time copy of the poll as seen by one identity.
type Snapshot struct {
	Options []Option
	Votes   Tally
	Choice  Option
}

func (s Snapshot) HasVoted() bool {
	return s.Choice != ""
}
