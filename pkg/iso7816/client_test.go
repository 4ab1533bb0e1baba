package iso7816

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/gregLibert/simota/pkg/tlv"
	"github.com/pion/logging"
)

// scriptedCard answers each transmitted APDU with the next scripted response
// and records what it received.
type scriptedCard struct {
	responses [][]byte
	sent      [][]byte
	err       error
}

func (c *scriptedCard) Transmit(cmd []byte) ([]byte, error) {
	c.sent = append(c.sent, bytes.Clone(cmd))
	if c.err != nil {
		return nil, c.err
	}
	if len(c.responses) == 0 {
		return []byte{0x6F, 0x00}, nil
	}
	r := c.responses[0]
	c.responses = c.responses[1:]
	return r, nil
}

func TestClientSend(t *testing.T) {
	envelope := Envelope(ClassGSM(), tlv.Hex("D1 03 82 01 83"))

	t.Run("final status on first exchange", func(t *testing.T) {
		card := &scriptedCard{responses: [][]byte{tlv.Hex("90 00")}}
		trace, err := NewClient(card).Send(envelope)
		if err != nil {
			t.Fatal(err)
		}
		if len(trace) != 1 || !trace.IsSuccess() {
			t.Errorf("unexpected trace:\n%s", trace.Describe())
		}
	})

	t.Run("9F XX triggers GET RESPONSE on the GSM class", func(t *testing.T) {
		card := &scriptedCard{responses: [][]byte{
			tlv.Hex("9F 05"),
			tlv.Hex("02 71 00 AA BB 90 00"),
		}}
		trace, err := NewClient(card).Send(envelope)
		if err != nil {
			t.Fatal(err)
		}
		if len(card.sent) != 2 || !bytes.Equal(card.sent[1], tlv.Hex("A0 C0 00 00 05")) {
			t.Fatalf("sent %X", card.sent)
		}
		if !bytes.Equal(trace.Data(), tlv.Hex("02 71 00 AA BB")) {
			t.Errorf("Data() = %X", trace.Data())
		}
		if trace.First().Response.Status != NewStatusWord(0x9F, 0x05) {
			t.Errorf("First() status = %s", trace.First().Response.Status)
		}
	})

	t.Run("9E XX download error keeps the first status", func(t *testing.T) {
		card := &scriptedCard{responses: [][]byte{
			tlv.Hex("9E 03"),
			tlv.Hex("01 02 03 90 00"),
		}}
		trace, err := NewClient(card).Send(envelope)
		if err != nil {
			t.Fatal(err)
		}
		if trace.First().Response.Status.SW1() != 0x9E || len(trace.Data()) != 3 {
			t.Errorf("unexpected trace:\n%s", trace.Describe())
		}
	})

	t.Run("61 XX on a UICC", func(t *testing.T) {
		card := &scriptedCard{responses: [][]byte{tlv.Hex("61 00"), tlv.Hex("90 00")}}
		_, err := NewClient(card).Send(Envelope(ClassUICC(), tlv.Hex("D1 00")))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(card.sent[1], tlv.Hex("80 C0 00 00 00")) {
			t.Errorf("GET RESPONSE = %X", card.sent[1])
		}
	})

	t.Run("6C XX re-issues with the right Le", func(t *testing.T) {
		card := &scriptedCard{responses: [][]byte{tlv.Hex("6C 0A"), tlv.Hex("89 01 00 00 00 00 00 00 00 00 90 00")}}
		trace, err := NewClient(card).Send(ReadBinary(ClassGSM(), 0, 256))
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(card.sent[1], tlv.Hex("A0 B0 00 00 0A")) {
			t.Errorf("re-issued = %X", card.sent[1])
		}
		if len(trace.Data()) != 10 {
			t.Errorf("Data() = %X", trace.Data())
		}
	})

	t.Run("procedure loop is bounded", func(t *testing.T) {
		responses := make([][]byte, maxProcedureSteps+1)
		for i := range responses {
			responses[i] = tlv.Hex("61 01")
		}
		card := &scriptedCard{responses: responses}
		trace, err := NewClient(card).Send(envelope)
		if err == nil {
			t.Fatal("expected an error")
		}
		if len(trace) != maxProcedureSteps {
			t.Errorf("trace length = %d", len(trace))
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		card := &scriptedCard{err: errors.New("reader removed")}
		_, err := NewClient(card).Send(envelope)
		if err == nil || !strings.Contains(err.Error(), "reader removed") {
			t.Errorf("err = %v", err)
		}
	})

	t.Run("logs APDUs at trace level", func(t *testing.T) {
		var out bytes.Buffer
		factory := &logging.DefaultLoggerFactory{
			Writer:          &out,
			DefaultLogLevel: logging.LogLevelTrace,
			ScopeLevels:     map[string]logging.LogLevel{},
		}
		card := &scriptedCard{responses: [][]byte{tlv.Hex("90 00")}}
		if _, err := NewClient(card, factory).Send(envelope); err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(out.String(), ">> A0C2000005D103820183") {
			t.Errorf("log output:\n%s", out.String())
		}
	})
}
