package servent

import "sync/atomic"

type counters struct {
	received   atomic.Int64
	clireqs    atomic.Int64
	queries    atomic.Int64
	responses  atomic.Int64
	duplicates atomic.Int64
	forwarded  atomic.Int64
	answered   atomic.Int64
	malformed  atomic.Int64
	sendErrors atomic.Int64
	seen       atomic.Int64
}

// Stats is a point-in-time copy of an engine's counters.
type Stats struct {
	Received   int64 // datagrams read
	Clireqs    int64 // client requests accepted, i.e. queries originated here
	Queries    int64 // queries received from other servents
	Responses  int64 // unexpected RESPONSE datagrams
	Duplicates int64
	Forwarded  int64 // QUERY datagrams sent to neighbors
	Answered   int64 // RESPONSE datagrams sent to origins
	Malformed  int64
	SendErrors int64
	Seen       int64 // size of the seen set
}

// Stats returns a snapshot of the engine counters. Safe to call from any goroutine.
func (e *Engine) Stats() Stats {
	return Stats{
		Received:   e.stats.received.Load(),
		Clireqs:    e.stats.clireqs.Load(),
		Queries:    e.stats.queries.Load(),
		Responses:  e.stats.responses.Load(),
		Duplicates: e.stats.duplicates.Load(),
		Forwarded:  e.stats.forwarded.Load(),
		Answered:   e.stats.answered.Load(),
		Malformed:  e.stats.malformed.Load(),
		SendErrors: e.stats.sendErrors.Load(),
		Seen:       e.stats.seen.Load(),
	}
}

// Map keys the counters by snake_case name.
func (s Stats) Map() map[string]int64 {
	return map[string]int64{
		"received":    s.Received,
		"clireqs":     s.Clireqs,
		"queries":     s.Queries,
		"responses":   s.Responses,
		"duplicates":  s.Duplicates,
		"forwarded":   s.Forwarded,
		"answered":    s.Answered,
		"malformed":   s.Malformed,
		"send_errors": s.SendErrors,
		"seen":        s.Seen,
	}
}
