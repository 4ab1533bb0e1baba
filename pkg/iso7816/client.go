package iso7816

import (
	"fmt"

	"github.com/pion/logging"
)

// CLIENT & PROTOCOL LOGIC:
// The Client drives the card connection and hides the T=0 transport
// procedures from the caller:
//
// 1. "61 XX", "9F XX" and "9E XX" (Response Available):
//    XX bytes are waiting. The client sends GET RESPONSE with Le = XX on the
//    class of the original command ('A0' for a GSM SIM).
//
// 2. "6C XX" (Wrong Length):
//    The client re-sends the original command with Le = XX.
//
// Send returns the whole exchange as a Trace.

// maxProcedureSteps bounds the GET RESPONSE / re-issue loop of one Send.
const maxProcedureSteps = 8

// Transmitter abstracts the physical card connection (e.g. *scard.Card).
type Transmitter interface {
	Transmit(cmd []byte) ([]byte, error)
}

// Client manages the high-level communication with the card.
type Client struct {
	Card Transmitter
	log  logging.LeveledLogger
}

// NewClient creates a Client. APDUs are logged at trace level when a logger
// factory is given.
func NewClient(card Transmitter, loggerFactory ...logging.LoggerFactory) *Client {
	c := &Client{Card: card}
	if len(loggerFactory) > 0 && loggerFactory[0] != nil {
		c.log = loggerFactory[0].NewLogger("apdu")
	}
	return c
}

// Send transmits a command and runs the transport procedures (61XX, 9FXX,
// 9EXX, 6CXX) until the card gives a final status.
func (c *Client) Send(cmd *CommandAPDU) (Trace, error) {
	var trace Trace
	for step := 0; step < maxProcedureSteps; step++ {
		resp, err := c.transmit(cmd)
		if err != nil {
			return trace, err
		}
		trace = append(trace, Transaction{Command: cmd, Response: resp})

		sw := resp.Status
		switch {
		case sw.IsResponseAvailable():
			// GET RESPONSE stays on the class and channel of the command.
			cla := cmd.Class
			cla.IsChained = false
			cmd = GetResponse(cla, shortLe(sw.SW2()))
		case sw.SW1() == 0x6C:
			reissued := *cmd
			reissued.Ne = shortLe(sw.SW2())
			cmd = &reissued
		default:
			return trace, nil
		}
	}
	return trace, fmt.Errorf("card still requests procedure bytes after %d exchanges", maxProcedureSteps)
}

func (c *Client) transmit(cmd *CommandAPDU) (*ResponseAPDU, error) {
	rawCmd, err := cmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("encoding error: %w", err)
	}
	if c.log != nil {
		c.log.Tracef(">> %X", rawCmd)
	}

	rawResp, err := c.Card.Transmit(rawCmd)
	if err != nil {
		return nil, fmt.Errorf("transmission error: %w", err)
	}
	if c.log != nil {
		c.log.Tracef("<< %X", rawResp)
	}
	return ParseResponseAPDU(rawResp)
}
