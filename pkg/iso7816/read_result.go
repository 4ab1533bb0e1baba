package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/tlv"
)

// ReadResult represents the outcome of a READ BINARY or READ RECORD.
type ReadResult struct {
	Trace
}

func NewReadResult(t Trace) (*ReadResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}
	switch ins := t[0].Command.Instruction.Raw; ins {
	case INS_READ_BINARY, INS_READ_RECORD:
	default:
		return nil, fmt.Errorf("trace must start with a READ command (got %02X)", byte(ins))
	}
	return &ReadResult{Trace: t}, nil
}

// Describe generates a report of the read operation.
func (r *ReadResult) Describe() string {
	var sb strings.Builder

	cmd := r.Trace[0].Command
	if cmd.Instruction.Raw == INS_READ_RECORD {
		sb.WriteString("=== READ RECORD COMMAND REPORT ===\n")
		fmt.Fprintf(&sb, "    + Record:  %d (%s)\n", cmd.P1, RecordMode(cmd.P2))
	} else {
		sb.WriteString("=== READ BINARY COMMAND REPORT ===\n")
		fmt.Fprintf(&sb, "    + Offset:  %d\n", uint16(cmd.P1)<<8|uint16(cmd.P2))
	}
	fmt.Fprintf(&sb, "    + Result:  %s\n", r.Last().Response.Status.Verbose())
	if len(r.Trace) > 1 {
		fmt.Fprintf(&sb, "    + Steps:   %d\n", len(r.Trace))
	}

	data := r.Data()
	sb.WriteString("[=] DATA OUTCOME:\n")
	if len(data) > 0 {
		fmt.Fprintf(&sb, "    + Length: %d bytes\n", len(data))
		fmt.Fprintf(&sb, "    + Dump:   %X\n", data)
		fmt.Fprintf(&sb, "    + ASCII:  %q\n", tlv.MakeSafeASCII(data))
	} else {
		sb.WriteString("    - No Data Received.\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
