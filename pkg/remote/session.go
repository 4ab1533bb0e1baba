// Package remote runs secured exchanges with a card application: it owns the
// replay counters, wraps each APDU into a command packet, hands it to a
// transport and verifies the Proof of Receipt.
package remote

import (
	"context"
	"fmt"

	"github.com/gregLibert/simota/pkg/iso7816"
	"github.com/gregLibert/simota/pkg/ota"
	"github.com/pion/logging"
	"github.com/pkg/errors"
)

// Transport delivers an encoded command packet to the card. It returns the
// response user data, if any, and the status word of the underlying
// exchange.
type Transport interface {
	Transmit(ctx context.Context, packet []byte) ([]byte, iso7816.StatusWord, error)
}

// TransportError reports a packet the card did not process: the reader
// failed (Err is set) or the card rejected the envelope (Status).
type TransportError struct {
	Status iso7816.StatusWord
	Err    error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport failure: %v", e.Err)
	}
	return fmt.Sprintf("card rejected the packet: %s", e.Status.Verbose())
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Config configures a Session.
type Config struct {
	// Keyset secures the packets. Required.
	Keyset *ota.Keyset
	// SPI is the security policy of every command.
	SPI ota.SPI
	// TAR addresses the card application.
	TAR ota.TAR
	// Transport carries the packets. Required.
	Transport Transport
	// Counters holds the replay counters. A new store is used when nil.
	Counters *CounterStore
	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session exchanges secured packets with one card application.
type Session struct {
	keyset    *ota.Keyset
	spi       ota.SPI
	tar       ota.TAR
	transport Transport
	counters  *CounterStore
	log       logging.LeveledLogger
}

// Reply is the outcome of one exchange.
type Reply struct {
	Counter ota.Counter
	// Status is the status word of the transport exchange.
	Status iso7816.StatusWord
	// PoR is nil when the card returned no response packet.
	PoR *ota.Result
}

// NewSession validates the configuration and creates a Session.
func NewSession(config Config) (*Session, error) {
	if config.Keyset == nil {
		return nil, errors.Wrap(ota.ErrKeyNotFound, "session without keyset")
	}
	if config.Transport == nil {
		return nil, errors.New("session without transport")
	}
	if err := config.SPI.Validate(); err != nil {
		return nil, err
	}

	s := &Session{
		keyset:    config.Keyset,
		spi:       config.SPI,
		tar:       config.TAR,
		transport: config.Transport,
		counters:  config.Counters,
	}
	if s.counters == nil {
		s.counters = NewCounterStore()
	}
	if config.LoggerFactory != nil {
		s.log = config.LoggerFactory.NewLogger("ota")
	}
	return s, nil
}

// TAR returns the toolkit application reference the session addresses.
func (s *Session) TAR() ota.TAR {
	return s.tar
}

// Counters returns the counter store of the session.
func (s *Session) Counters() *CounterStore {
	return s.counters
}

// Exchange secures apdu, transmits it and verifies the PoR. Nothing is
// retried: a counter consumed by a failed exchange is not reused.
func (s *Session) Exchange(ctx context.Context, apdu []byte) (*Reply, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var cntr ota.Counter
	if s.spi.Counter != ota.CounterNone {
		var err error
		if cntr, err = s.counters.Next(s.tar); err != nil {
			return nil, errors.Wrapf(err, "TAR %s", s.tar)
		}
	}

	packet, err := ota.EncodeCommand(s.keyset, s.tar, s.spi, cntr, apdu)
	if err != nil {
		return nil, err
	}
	s.debugf("TAR %s CNTR %s >> %X", s.tar, cntr, packet)

	data, sw, err := s.transport.Transmit(ctx, packet)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		return nil, &TransportError{Err: err}
	}
	s.debugf("TAR %s << %X (%s)", s.tar, data, sw)

	// 9EXX still carries the card's answer to a failed download.
	if !sw.IsSuccess() && sw.SW1() != 0x9E {
		s.warnf("TAR %s: envelope rejected with %s", s.tar, sw.Verbose())
		return nil, &TransportError{Status: sw}
	}

	reply := &Reply{Counter: cntr, Status: sw}
	if len(data) == 0 {
		if s.spi.PoR == ota.PoRRequired && !s.spi.PoRInSubmit {
			s.warnf("TAR %s: PoR required but none returned (%s)", s.tar, sw)
		}
		return reply, nil
	}

	opts := []ota.DecodeOption{ota.ExpectTAR(s.tar)}
	if s.spi.Counter != ota.CounterNone {
		opts = append(opts, ota.ExpectCounter(cntr))
	}
	reply.PoR, err = ota.DecodeResponse(s.keyset, s.spi, data, opts...)
	switch {
	case errors.Is(err, ota.ErrIntegrityCheckFailed):
		s.warnf("TAR %s: PoR integrity check failed: %v", s.tar, err)
		return nil, err
	case err != nil:
		s.warnf("TAR %s: invalid PoR: %v", s.tar, err)
		return nil, err
	}

	if s.log != nil {
		s.log.Infof("TAR %s CNTR %s: %s (%s)", s.tar, cntr, reply.PoR.Status, reply.PoR.Overall)
	}
	return reply, nil
}

func (s *Session) debugf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Debugf(format, args...)
	}
}

func (s *Session) warnf(format string, args ...interface{}) {
	if s.log != nil {
		s.log.Warnf(format, args...)
	}
}
