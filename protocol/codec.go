package protocol

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net/netip"
	"strings"

	"github.com/RenatoUtsch/redes-tp3/logger"
)

// DecodeType reads the 2-byte tag of buf. Callers must check it before a full
// decode since each kind has a different minimum length.
func DecodeType(buf []byte) (MessageType, error) {
	if len(buf) < TypeSize {
		return 0, fmt.Errorf("%w: %d bytes", ErrShortMessage, len(buf))
	}
	t := MessageType(binary.BigEndian.Uint16(buf))
	if !t.Valid() {
		return t, fmt.Errorf("%w: %d", ErrUnknownType, uint16(t))
	}
	return t, nil
}

// EncodeClireq builds a CLIREQ for key.
func EncodeClireq(key string) []byte {
	key = truncate(key, MaxKeySize)
	buf := make([]byte, 0, TypeSize+len(key)+1)
	buf = binary.BigEndian.AppendUint16(buf, uint16(Clireq))
	buf = append(buf, key...)
	return append(buf, 0)
}

// EncodeQuery builds a QUERY carrying q.TTL verbatim. The origin must be an
// IPv4 address.
func EncodeQuery(q QueryMessage) ([]byte, error) {
	if q.TTL < 0 || q.TTL > MaxTTL {
		return nil, fmt.Errorf("%w: %d", ErrTTLOutOfRange, q.TTL)
	}
	ip := q.Identity.Origin.Addr().Unmap()
	if !ip.Is4() {
		return nil, fmt.Errorf("%w: %s", ErrNotIPv4, q.Identity.Origin)
	}
	ip4 := ip.As4()
	key := truncate(q.Identity.Key, MaxKeySize)

	buf := make([]byte, 0, QueryHeaderSize+len(key)+1)
	buf = binary.BigEndian.AppendUint16(buf, uint16(Query))
	buf = binary.BigEndian.AppendUint16(buf, uint16(q.TTL))
	buf = append(buf, ip4[:]...)
	buf = binary.BigEndian.AppendUint16(buf, q.Identity.Origin.Port())
	buf = binary.BigEndian.AppendUint32(buf, q.Identity.Sequence)
	buf = append(buf, key...)
	return append(buf, 0), nil
}

// EncodeResponse builds a RESPONSE for a key/value pair.
func EncodeResponse(key, value string) []byte {
	key = truncate(key, MaxKeySize)
	value = truncate(value, MaxValueSize)
	buf := make([]byte, 0, TypeSize+len(key)+1+len(value)+1)
	buf = binary.BigEndian.AppendUint16(buf, uint16(Response))
	buf = append(buf, key...)
	buf = append(buf, '\t')
	buf = append(buf, value...)
	return append(buf, 0)
}

// Codec decodes the three message kinds. The zero value is lenient: a tag that
// does not match the requested kind is logged and decoding goes on with the
// remaining bytes. A strict Codec rejects the buffer with a *TypeMismatchError.
type Codec struct {
	Strict bool
	LogFn  func(format string, args ...interface{})
}

// DecodeClireq returns the key of a CLIREQ.
func (c Codec) DecodeClireq(buf []byte) (string, error) {
	if err := c.checkType(buf, Clireq); err != nil {
		return "", err
	}
	return cstring(buf[TypeSize:]), nil
}

// DecodeQuery returns the query in buf with one hop consumed: TTL is the wire
// value minus one.
func (c Codec) DecodeQuery(buf []byte) (QueryMessage, error) {
	if len(buf) < QueryHeaderSize {
		return QueryMessage{}, fmt.Errorf("%w: query needs %d bytes, got %d", ErrShortMessage, QueryHeaderSize, len(buf))
	}
	if err := c.checkType(buf, Query); err != nil {
		return QueryMessage{}, err
	}

	pos := TypeSize
	ttl := int(binary.BigEndian.Uint16(buf[pos:]))
	pos += 2
	ip := netip.AddrFrom4([4]byte(buf[pos : pos+4]))
	pos += 4
	port := binary.BigEndian.Uint16(buf[pos:])
	pos += 2
	seq := binary.BigEndian.Uint32(buf[pos:])
	pos += 4

	return QueryMessage{
		Identity: QueryIdentity{
			Key:      cstring(buf[pos:]),
			Origin:   netip.AddrPortFrom(ip, port),
			Sequence: seq,
		},
		TTL: ttl - 1,
	}, nil
}

// DecodeResponse splits a RESPONSE on its first tab. A payload without a tab
// decodes as a key with an empty value.
func (c Codec) DecodeResponse(buf []byte) (ResponseMessage, error) {
	if err := c.checkType(buf, Response); err != nil {
		return ResponseMessage{}, err
	}
	text := cstring(buf[TypeSize:])
	key, value, _ := strings.Cut(text, "\t")
	return ResponseMessage{Key: key, Value: value}, nil
}

func (c Codec) checkType(buf []byte, expected MessageType) error {
	if len(buf) < TypeSize {
		return fmt.Errorf("%w: %d bytes", ErrShortMessage, len(buf))
	}
	actual := MessageType(binary.BigEndian.Uint16(buf))
	if actual == expected {
		return nil
	}
	mismatch := &TypeMismatchError{Expected: expected, Actual: actual}
	if c.Strict {
		return mismatch
	}
	c.logf("%v, decoding anyway", mismatch)
	return nil
}

func (c Codec) logf(format string, args ...interface{}) {
	if c.LogFn != nil {
		c.LogFn(format, args...)
		return
	}
	logger.Warnf(format, args...)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}
