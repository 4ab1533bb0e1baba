package ota

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

// CounterSize is the width of the CNTR field.
const CounterSize = 5

// MaxCounter is the largest value a 5-byte counter can hold.
const MaxCounter = 1<<40 - 1

// Counter is the 5-byte replay counter carried in CNTR. Counters are owned by
// the caller; the codec only writes and checks them.
type Counter [CounterSize]byte

// ErrCounterExhausted is returned by Next when the counter cannot grow.
var ErrCounterExhausted = errors.New("replay counter exhausted")

// NewCounter builds a counter from an integer value.
func NewCounter(v uint64) (Counter, error) {
	if v > MaxCounter {
		return Counter{}, malformed("counter value %d exceeds 5 bytes", v)
	}
	var c Counter
	for i := CounterSize - 1; i >= 0; i-- {
		c[i] = byte(v)
		v >>= 8
	}
	return c, nil
}

// Uint64 returns the counter value.
func (c Counter) Uint64() uint64 {
	var v uint64
	for _, b := range c {
		v = v<<8 | uint64(b)
	}
	return v
}

// Next returns the counter incremented by one.
func (c Counter) Next() (Counter, error) {
	v := c.Uint64()
	if v == MaxCounter {
		return c, ErrCounterExhausted
	}
	return NewCounter(v + 1)
}

func (c Counter) String() string {
	return strings.ToUpper(hex.EncodeToString(c[:]))
}

// TARSize is the width of a Toolkit Application Reference.
const TARSize = 3

// TAR is the Toolkit Application Reference addressed by a packet.
type TAR [TARSize]byte

// ParseTAR decodes 6 hex digits, e.g. "B00011".
func ParseTAR(s string) (TAR, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return TAR{}, malformed("TAR %q: %v", s, err)
	}
	if len(raw) != TARSize {
		return TAR{}, malformed("TAR %q must be %d bytes", s, TARSize)
	}
	var t TAR
	copy(t[:], raw)
	return t, nil
}

func (t TAR) String() string {
	return strings.ToUpper(hex.EncodeToString(t[:]))
}
