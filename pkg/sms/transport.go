package sms

import (
	"context"
	"fmt"
	"time"

	"github.com/gregLibert/simota/pkg/iso7816"
)

// EnvelopeTransport delivers secured packets to a card as SMS-PP data
// download envelopes, the way a handset forwards a class 2 SIM data SMS.
type EnvelopeTransport struct {
	Client     *iso7816.Client
	Class      iso7816.Class
	Originator Address
	SMSC       Address
	// Now stamps the SMS-DELIVER; time.Now when nil.
	Now func() time.Time
}

// Transmit sends the packet and returns the response data of the card (the
// PoR user data, when any) with the status word that answered the ENVELOPE.
func (t *EnvelopeTransport) Transmit(ctx context.Context, packet []byte) ([]byte, iso7816.StatusWord, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	now := time.Now
	if t.Now != nil {
		now = t.Now
	}
	deliver, err := NewDeliver(t.Originator, packet, now())
	if err != nil {
		return nil, 0, err
	}
	download, err := NewDownload(t.SMSC, deliver)
	if err != nil {
		return nil, 0, err
	}
	env, err := download.Envelope()
	if err != nil {
		return nil, 0, err
	}

	trace, err := t.Client.Send(iso7816.Envelope(t.Class, env))
	if err != nil {
		return nil, 0, fmt.Errorf("ENVELOPE: %w", err)
	}
	first := trace.First()
	if first == nil || first.Response == nil {
		return nil, 0, fmt.Errorf("ENVELOPE: no response")
	}
	// The envelope was accepted but fetching its answer failed: report the
	// status of the failing GET RESPONSE, not the 61XX/9FXX that announced it.
	if last := trace.Last(); len(trace) > 1 && last.Response != nil && !last.Response.Status.IsSuccess() {
		return nil, last.Response.Status, nil
	}
	return trace.Data(), first.Response.Status, nil
}
