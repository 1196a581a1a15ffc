package ibkr

import (
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// The gateway speaks a framed text protocol: every message is a 4-byte
// big-endian length followed by NUL-terminated ASCII fields.
const (
	frameHeaderLen = 4
	maxMsgLen      = 0xFFFFFF
)

var errBadLength = fmt.Errorf("ibkr: message exceeds maximum length %d", maxMsgLen)

// messageBuilder accumulates outgoing fields and encodes them into a frame.
type messageBuilder struct {
	fields []string
}

func newMessage(msgID int) *messageBuilder {
	b := &messageBuilder{}
	b.addInt(msgID)
	return b
}

func (b *messageBuilder) addString(s string) *messageBuilder {
	b.fields = append(b.fields, s)
	return b
}

func (b *messageBuilder) addInt(v int) *messageBuilder {
	return b.addString(strconv.Itoa(v))
}

func (b *messageBuilder) addInt64(v int64) *messageBuilder {
	return b.addString(strconv.FormatInt(v, 10))
}

func (b *messageBuilder) addFloat(v float64) *messageBuilder {
	return b.addString(strconv.FormatFloat(v, 'g', 10, 64))
}

// addOptFloat encodes the gateway's "no value" convention: an empty field.
func (b *messageBuilder) addOptFloat(v *float64) *messageBuilder {
	if v == nil {
		return b.addString("")
	}
	return b.addFloat(*v)
}

func (b *messageBuilder) addBool(v bool) *messageBuilder {
	if v {
		return b.addString("1")
	}
	return b.addString("0")
}

func (b *messageBuilder) addDecimal(d decimal.Decimal) *messageBuilder {
	return b.addString(d.String())
}

func (b *messageBuilder) addEmpty() *messageBuilder {
	return b.addString("")
}

// encode renders the frame: length header plus NUL-terminated fields.
func (b *messageBuilder) encode() []byte {
	size := 0
	for _, f := range b.fields {
		size += len(f) + 1
	}
	buf := make([]byte, frameHeaderLen, frameHeaderLen+size)
	binary.BigEndian.PutUint32(buf, uint32(size))
	for _, f := range b.fields {
		buf = append(buf, f...)
		buf = append(buf, 0)
	}
	return buf
}

// writeFrame writes a raw payload with the length header.
func writeFrame(w io.Writer, payload []byte) error {
	if len(payload) > maxMsgLen {
		return errBadLength
	}
	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

// readFrame reads one length-prefixed payload.
func readFrame(r io.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxMsgLen {
		return nil, errBadLength
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// splitFields splits a payload into its NUL-terminated fields.
func splitFields(payload []byte) []string {
	s := string(payload)
	s = strings.TrimSuffix(s, "\x00")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\x00")
}

// fieldScanner walks an incoming message's fields. It is lenient: reading
// past the end yields zero values, so handlers can parse the prefix they
// understand and ignore version-dependent tails.
type fieldScanner struct {
	fields []string
	pos    int
}

func newFieldScanner(fields []string) *fieldScanner {
	return &fieldScanner{fields: fields}
}

func (s *fieldScanner) next() string {
	if s.pos >= len(s.fields) {
		return ""
	}
	f := s.fields[s.pos]
	s.pos++
	return f
}

func (s *fieldScanner) remaining() int {
	return len(s.fields) - s.pos
}

func (s *fieldScanner) int() int {
	v, _ := strconv.Atoi(s.next())
	return v
}

func (s *fieldScanner) int64() int64 {
	v, _ := strconv.ParseInt(s.next(), 10, 64)
	return v
}

func (s *fieldScanner) float() float64 {
	f := s.next()
	if f == "" {
		return 0
	}
	v, _ := strconv.ParseFloat(f, 64)
	return v
}

func (s *fieldScanner) bool() bool {
	return s.next() == "1"
}

func (s *fieldScanner) decimal() decimal.Decimal {
	f := s.next()
	if f == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(f)
	if err != nil {
		return decimal.Zero
	}
	return d
}
