package cli

import (
	"fmt"

	"github.com/ebfe/scard"
	"github.com/gregLibert/simota/pkg/iso7816"
)

// reader is a card connection through PC/SC.
type reader struct {
	ctx  *scard.Context
	card *scard.Card
	name string
}

// connectReader establishes the PC/SC context and connects to the card in
// the reader at index.
func connectReader(index int) (*reader, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establishing context: %w", err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		release(ctx)
		return nil, fmt.Errorf("no smart card reader found")
	}
	if index < 0 || index >= len(readers) {
		release(ctx)
		return nil, fmt.Errorf("reader %d not found, %d available", index, len(readers))
	}
	logger.Info().Str("reader", readers[index]).Msg("using reader")

	// Force T=0 or T=1 to avoid "Parameter Incorrect" errors (Error 57)
	card, err := ctx.Connect(readers[index], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		release(ctx)
		return nil, fmt.Errorf("connecting to card: %w", err)
	}
	return &reader{ctx: ctx, card: card, name: readers[index]}, nil
}

// client returns an iso7816 client logging APDUs at trace level.
func (r *reader) client() *iso7816.Client {
	return iso7816.NewClient(r.card, loggerFactory{base: logger})
}

func (r *reader) Close() {
	if err := r.card.Disconnect(scard.LeaveCard); err != nil {
		logger.Warn().Err(err).Msg("failed to disconnect card")
	}
	release(r.ctx)
}

func release(ctx *scard.Context) {
	if err := ctx.Release(); err != nil {
		logger.Warn().Err(err).Msg("failed to release context")
	}
}
