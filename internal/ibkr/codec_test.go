package ibkr

import (
	"bytes"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("61\x001\x00")

	require.NoError(t, writeFrame(&buf, payload))

	got, err := readFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestReadFrame_RejectsOversizedMessages(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0xFF, 0xFF, 0xFF, 0xFF})

	_, err := readFrame(&buf)
	assert.ErrorIs(t, err, errBadLength)
}

func TestMessageBuilder_Encode(t *testing.T) {
	b := newMessage(outReqPositions)
	b.addInt(1)

	frame := b.encode()
	// 4-byte header + "61" + NUL + "1" + NUL
	require.Len(t, frame, 4+5)
	assert.Equal(t, []byte{0, 0, 0, 5}, frame[:4])
	assert.Equal(t, "61\x001\x00", string(frame[4:]))
}

func TestMessageBuilder_FieldEncodings(t *testing.T) {
	limit := 42.5
	b := &messageBuilder{}
	b.addBool(true)
	b.addBool(false)
	b.addOptFloat(nil)
	b.addOptFloat(&limit)
	b.addDecimal(decimal.RequireFromString("100.25"))
	b.addEmpty()

	assert.Equal(t, []string{"1", "0", "", "42.5", "100.25", ""}, b.fields)
}

func TestSplitFields(t *testing.T) {
	assert.Equal(t, []string{"9", "1", "5"}, splitFields([]byte("9\x001\x005\x00")))
	assert.Nil(t, splitFields(nil))
	// Empty trailing field before the terminator survives
	assert.Equal(t, []string{"71", "2", "7", ""}, splitFields([]byte("71\x002\x007\x00\x00")))
}

func TestFieldScanner_Lenient(t *testing.T) {
	s := newFieldScanner([]string{"61", "not-a-number", "2.5"})

	assert.Equal(t, 61, s.int())
	assert.Equal(t, 0, s.int()) // unparseable -> zero
	assert.Equal(t, 2.5, s.float())
	assert.Equal(t, "", s.next())        // exhausted -> empty
	assert.True(t, s.decimal().IsZero()) // exhausted -> zero decimal
	assert.Equal(t, 0, s.remaining())
}

func TestFieldScanner_Decimal(t *testing.T) {
	s := newFieldScanner([]string{"100.5", "", "-3"})

	assert.True(t, s.decimal().Equal(decimal.RequireFromString("100.5")))
	assert.True(t, s.decimal().IsZero())
	assert.True(t, s.decimal().Equal(decimal.NewFromInt(-3)))
}
