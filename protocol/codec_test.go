package protocol

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOrigin = netip.MustParseAddrPort("192.168.10.7:5000")

// captureLog collects lenient-mode warnings instead of writing them out.
func captureLog(lines *[]string) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		*lines = append(*lines, fmt.Sprintf(format, args...))
	}
}

func TestDecodeType(t *testing.T) {
	for _, tc := range []struct {
		buf  []byte
		want MessageType
	}{
		{EncodeClireq("k"), Clireq},
		{EncodeResponse("k", "v"), Response},
		{[]byte{0, 2}, Query},
	} {
		got, err := DecodeType(tc.buf)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := DecodeType([]byte{1})
	assert.ErrorIs(t, err, ErrShortMessage)

	got, err := DecodeType([]byte{0, 9, 'x'})
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Equal(t, MessageType(9), got)
}

func TestClireqRoundTrip(t *testing.T) {
	var c Codec
	for _, key := range []string{"", "foo", strings.Repeat("k", MaxKeySize)} {
		buf := EncodeClireq(key)
		assert.Len(t, buf, TypeSize+len(key)+1)
		got, err := c.DecodeClireq(buf)
		require.NoError(t, err)
		assert.Equal(t, key, got)
	}
}

func TestClireqLayout(t *testing.T) {
	assert.Equal(t, []byte{0, 1, 'b', 'a', 'z', 0}, EncodeClireq("baz"))
}

func TestClireqTruncatesKey(t *testing.T) {
	long := strings.Repeat("abcdefghij", 6)
	buf := EncodeClireq(long)
	assert.Len(t, buf, ClireqMessageSize)

	got, err := Codec{}.DecodeClireq(buf)
	require.NoError(t, err)
	assert.Equal(t, long[:MaxKeySize], got)
}

func TestQueryRoundTrip(t *testing.T) {
	q := QueryMessage{
		Identity: QueryIdentity{Key: "baz", Origin: testOrigin, Sequence: 70000},
		TTL:      3,
	}
	buf, err := EncodeQuery(q)
	require.NoError(t, err)
	assert.Len(t, buf, QueryHeaderSize+len("baz")+1)

	got, err := Codec{}.DecodeQuery(buf)
	require.NoError(t, err)
	assert.Equal(t, q.Identity, got.Identity)
	assert.Equal(t, q.TTL-1, got.TTL)
}

func TestQueryLayout(t *testing.T) {
	q := QueryMessage{
		Identity: QueryIdentity{Key: "k", Origin: netip.MustParseAddrPort("10.0.0.1:258"), Sequence: 5},
		TTL:      2,
	}
	buf, err := EncodeQuery(q)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0, 2, // type
		0, 2, // ttl
		10, 0, 0, 1, // ip
		1, 2, // port
		0, 0, 0, 5, // sequence
		'k', 0,
	}, buf)
}

func TestQueryTTLConsumesOneHop(t *testing.T) {
	for ttl := 0; ttl <= 5; ttl++ {
		q := QueryMessage{Identity: QueryIdentity{Key: "k", Origin: testOrigin}, TTL: ttl}
		buf, err := EncodeQuery(q)
		require.NoError(t, err)
		got, err := Codec{}.DecodeQuery(buf)
		require.NoError(t, err)
		assert.Equal(t, ttl-1, got.TTL)
	}

	q := QueryMessage{Identity: QueryIdentity{Key: "k", Origin: testOrigin}, TTL: MaxTTL}
	buf, err := EncodeQuery(q)
	require.NoError(t, err)
	got, err := Codec{}.DecodeQuery(buf)
	require.NoError(t, err)
	assert.Equal(t, MaxTTL-1, got.TTL)
}

func TestEncodeQueryRejects(t *testing.T) {
	_, err := EncodeQuery(QueryMessage{Identity: QueryIdentity{Origin: testOrigin}, TTL: -1})
	assert.ErrorIs(t, err, ErrTTLOutOfRange)

	_, err = EncodeQuery(QueryMessage{Identity: QueryIdentity{Origin: testOrigin}, TTL: MaxTTL + 1})
	assert.ErrorIs(t, err, ErrTTLOutOfRange)

	v6 := netip.MustParseAddrPort("[2001:db8::1]:9000")
	_, err = EncodeQuery(QueryMessage{Identity: QueryIdentity{Origin: v6}, TTL: 1})
	assert.ErrorIs(t, err, ErrNotIPv4)
}

func TestEncodeQueryUnmapsIPv4(t *testing.T) {
	mapped := netip.MustParseAddrPort("[::ffff:127.0.0.1]:9000")
	buf, err := EncodeQuery(QueryMessage{Identity: QueryIdentity{Key: "k", Origin: mapped}, TTL: 1})
	require.NoError(t, err)

	got, err := Codec{}.DecodeQuery(buf)
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddrPort("127.0.0.1:9000"), got.Identity.Origin)
}

func TestQueryTruncatesKey(t *testing.T) {
	long := strings.Repeat("q", 100)
	buf, err := EncodeQuery(QueryMessage{Identity: QueryIdentity{Key: long, Origin: testOrigin}, TTL: 1})
	require.NoError(t, err)
	assert.Len(t, buf, QueryMessageSize)

	got, err := Codec{}.DecodeQuery(buf)
	require.NoError(t, err)
	assert.Equal(t, long[:MaxKeySize], got.Identity.Key)
}

func TestDecodeQueryShort(t *testing.T) {
	_, err := Codec{}.DecodeQuery([]byte{0, 2, 0, 3})
	assert.ErrorIs(t, err, ErrShortMessage)
}

func TestResponseRoundTrip(t *testing.T) {
	for _, tc := range []struct{ key, value string }{
		{"foo", "bar"},
		{"baz", "a value with spaces"},
		{"", ""},
		{strings.Repeat("k", MaxKeySize), strings.Repeat("v", MaxValueSize)},
	} {
		buf := EncodeResponse(tc.key, tc.value)
		got, err := Codec{}.DecodeResponse(buf)
		require.NoError(t, err)
		assert.Equal(t, ResponseMessage{Key: tc.key, Value: tc.value}, got)
	}
}

func TestResponseTruncates(t *testing.T) {
	key := strings.Repeat("k", 50)
	value := strings.Repeat("v", 200)
	buf := EncodeResponse(key, value)
	assert.Len(t, buf, ResponseMessageSize)

	got, err := Codec{}.DecodeResponse(buf)
	require.NoError(t, err)
	assert.Equal(t, key[:MaxKeySize], got.Key)
	assert.Equal(t, value[:MaxValueSize], got.Value)
	assert.Equal(t, key[:MaxKeySize]+"\t"+value[:MaxValueSize], got.String())
}

func TestDecodeTrustsTerminator(t *testing.T) {
	// no terminator: the rest of the buffer is the key
	got, err := Codec{}.DecodeClireq([]byte{0, 1, 'a', 'b'})
	require.NoError(t, err)
	assert.Equal(t, "ab", got)

	// trailing garbage after the terminator is ignored
	got, err = Codec{}.DecodeClireq([]byte{0, 1, 'a', 0, 'z', 'z'})
	require.NoError(t, err)
	assert.Equal(t, "a", got)

	resp, err := Codec{}.DecodeResponse([]byte{0, 3, 'k', 'e', 'y', 0})
	require.NoError(t, err)
	assert.Equal(t, ResponseMessage{Key: "key"}, resp)
}

func TestLenientTypeMismatch(t *testing.T) {
	var lines []string
	c := Codec{LogFn: captureLog(&lines)}

	got, err := c.DecodeClireq(EncodeResponse("foo", "bar"))
	require.NoError(t, err)
	assert.Equal(t, "foo\tbar", got)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "expected CLIREQ, got RESPONSE")

	resp, err := c.DecodeResponse(EncodeClireq("foo"))
	require.NoError(t, err)
	assert.Equal(t, "foo", resp.Key)
	assert.Len(t, lines, 2)
}

func TestStrictTypeMismatch(t *testing.T) {
	var lines []string
	c := Codec{Strict: true, LogFn: captureLog(&lines)}

	_, err := c.DecodeClireq(EncodeResponse("foo", "bar"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTypeMismatch)

	var mismatch *TypeMismatchError
	require.True(t, errors.As(err, &mismatch))
	assert.Equal(t, Clireq, mismatch.Expected)
	assert.Equal(t, Response, mismatch.Actual)

	buf, err := EncodeQuery(QueryMessage{Identity: QueryIdentity{Key: "k", Origin: testOrigin}, TTL: 1})
	require.NoError(t, err)
	_, err = c.DecodeResponse(buf)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	assert.Empty(t, lines)
}

func TestMessageTypeString(t *testing.T) {
	assert.Equal(t, "CLIREQ", Clireq.String())
	assert.Equal(t, "QUERY", Query.String())
	assert.Equal(t, "RESPONSE", Response.String())
	assert.Equal(t, "UNKNOWN(7)", MessageType(7).String())
}
