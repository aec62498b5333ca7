// Package protocol holds the servent wire format and the query model.
package protocol

/*
Wire format

Every message starts with a 2-byte big-endian type tag. Multi-byte integers are
in network byte order and variable-length strings are NUL-terminated.

	CLIREQ   | type=1 | key\0 |
	QUERY    | type=2 | ttl u16 | origin ip 4B | origin port u16 | seq u32 | key\0 |
	RESPONSE | type=3 | key '\t' value\0 |

Keys are at most MaxKeySize bytes and values MaxValueSize bytes. Longer inputs are
truncated when encoding; decoding trusts the terminator.

Query identity

A QueryIdentity (key, origin, sequence) names one logical query across the whole
network. The originating servent stamps the sequence when it accepts a CLIREQ and
it never changes afterwards. TTL is not part of the identity: the same query
relayed along two paths arrives with different TTLs and is still a duplicate.
*/

import (
	"fmt"
	"net/netip"
)

const (
	MaxKeySize   = 40
	MaxValueSize = 160

	TypeSize = 2

	ClireqMessageSize   = TypeSize + MaxKeySize + 1
	ResponseDataSize    = MaxKeySize + 1 + MaxValueSize + 1
	ResponseMessageSize = TypeSize + ResponseDataSize

	// type, ttl, ip, port, sequence
	QueryHeaderSize  = TypeSize + 2 + 4 + 2 + 4
	QueryMessageSize = QueryHeaderSize + MaxKeySize + 1

	// MaxServerMessageSize is the largest datagram a servent expects to receive.
	MaxServerMessageSize = QueryMessageSize

	MaxTTL = 1<<16 - 1

	DefaultTTL = 3
)

// MessageType is the tag leading every datagram.
type MessageType uint16

const (
	Clireq   MessageType = 1
	Query    MessageType = 2
	Response MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case Clireq:
		return "CLIREQ"
	case Query:
		return "QUERY"
	case Response:
		return "RESPONSE"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", uint16(t))
	}
}

// Valid reports whether t is one of the three known kinds.
func (t MessageType) Valid() bool {
	return t >= Clireq && t <= Response
}

// QueryIdentity uniquely identifies a query. It is comparable and used as-is
// as the dedup key.
type QueryIdentity struct {
	Key      string
	Origin   netip.AddrPort
	Sequence uint32
}

func (id QueryIdentity) String() string {
	return fmt.Sprintf("%q from %s seq %d", id.Key, id.Origin, id.Sequence)
}

// QueryMessage is a query in flight. TTL may be negative after decoding a
// query that arrived with ttl 0.
type QueryMessage struct {
	Identity QueryIdentity
	TTL      int
}

func (q QueryMessage) String() string {
	return fmt.Sprintf("query{%s ttl %d}", q.Identity, q.TTL)
}

// ResponseMessage is the answer a servent sends straight to a query's origin.
type ResponseMessage struct {
	Key   string
	Value string
}

// String renders the response the way it travels on the wire, key and value
// separated by a tab.
func (r ResponseMessage) String() string {
	return r.Key + "\t" + r.Value
}
