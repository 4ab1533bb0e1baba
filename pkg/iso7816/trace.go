package iso7816

import (
	"fmt"
	"strings"
)

// TRACE:
// A Transaction is one C-APDU and the R-APDU that answered it. A Trace is the
// chronological list of transactions performed for one logical command: a
// single ENVELOPE may take an extra GET RESPONSE (61XX, 9FXX, 9EXX) or a
// re-issue with the right Le (6CXX).
//
// The first transaction tells how the card reacted to the command itself,
// the last one holds the data that was eventually retrieved.

// Transaction represents a completed Command-Response pair.
type Transaction struct {
	Command  *CommandAPDU
	Response *ResponseAPDU
}

// IsSuccess checks if the transaction ended with a successful status.
// It returns false if the response is missing.
func (t *Transaction) IsSuccess() bool {
	if t.Response == nil {
		return false
	}
	return t.Response.Status.IsSuccess()
}

// Trace is a sequence of transactions (Command-Response pairs).
type Trace []Transaction

// First returns the transaction of the original command, nil if empty.
func (t Trace) First() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[0]
}

// Last returns the final transaction of the trace, nil if empty.
func (t Trace) Last() *Transaction {
	if len(t) == 0 {
		return nil
	}
	return &t[len(t)-1]
}

// IsSuccess checks if the FINAL transaction in the trace was successful.
func (t Trace) IsSuccess() bool {
	last := t.Last()
	if last == nil {
		return false
	}
	return last.IsSuccess()
}

// Data returns the response data of the final transaction.
func (t Trace) Data() []byte {
	last := t.Last()
	if last == nil || last.Response == nil {
		return nil
	}
	return last.Response.Data
}

// Describe renders the exchange, one line per APDU.
func (t Trace) Describe() string {
	var sb strings.Builder
	for i, tx := range t {
		if tx.Command != nil {
			raw, _ := tx.Command.Bytes()
			fmt.Fprintf(&sb, "[%d] >> %X\n", i+1, raw)
		}
		if tx.Response != nil {
			fmt.Fprintf(&sb, "    << %X %s\n", tx.Response.Data, tx.Response.Status.Verbose())
		}
	}
	return strings.TrimSuffix(sb.String(), "\n")
}
