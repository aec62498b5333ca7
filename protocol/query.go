package protocol

import "net/netip"

// SequenceGenerator hands out the sequence numbers a servent stamps on the
// queries it originates. It is owned by a single engine goroutine and is not
// safe for concurrent use.
type SequenceGenerator struct {
	next uint32
}

// NewSequenceGenerator returns a generator whose first Next call yields start.
func NewSequenceGenerator(start uint32) *SequenceGenerator {
	return &SequenceGenerator{next: start}
}

// Next returns the current value and advances the counter by one.
func (g *SequenceGenerator) Next() uint32 {
	seq := g.next
	g.next++
	return seq
}

// Peek returns the value the next call to Next will yield.
func (g *SequenceGenerator) Peek() uint32 {
	return g.next
}

// QueryCreator turns accepted client requests into new queries.
type QueryCreator struct {
	sequence   *SequenceGenerator
	initialTTL int
}

// NewQueryCreator builds a creator stamping queries with initialTTL, starting
// the sequence at 0. A non-positive initialTTL falls back to DefaultTTL.
func NewQueryCreator(initialTTL int) *QueryCreator {
	if initialTTL <= 0 || initialTTL > MaxTTL {
		initialTTL = DefaultTTL
	}
	return &QueryCreator{
		sequence:   NewSequenceGenerator(0),
		initialTTL: initialTTL,
	}
}

// NewQuery allocates the identity of a new query for key, answered at origin.
func (c *QueryCreator) NewQuery(key string, origin netip.AddrPort) QueryMessage {
	return QueryMessage{
		Identity: QueryIdentity{
			Key:      key,
			Origin:   origin,
			Sequence: c.sequence.Next(),
		},
		TTL: c.initialTTL,
	}
}

// InitialTTL returns the TTL stamped on new queries.
func (c *QueryCreator) InitialTTL() int {
	return c.initialTTL
}
