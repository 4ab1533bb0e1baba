package iso7816

import (
	"fmt"
	"strings"

	"github.com/gregLibert/simota/pkg/tlv"
)

// SelectResult wraps the trace of a SELECT (including the GET RESPONSE the
// Client issued) to give access to the selected file.
type SelectResult struct {
	Trace
}

// NewSelectResult checks that the trace starts with a SELECT command.
func NewSelectResult(t Trace) (*SelectResult, error) {
	if len(t) == 0 {
		return nil, fmt.Errorf("cannot create result from empty trace")
	}
	if t[0].Command.Instruction.Raw != INS_SELECT {
		return nil, fmt.Errorf("trace must start with SELECT command (got %02X)", byte(t[0].Command.Instruction.Raw))
	}
	return &SelectResult{Trace: t}, nil
}

// File parses the response data of the selection.
func (r *SelectResult) File() (*FileInfo, error) {
	if !r.IsSuccess() {
		return nil, fmt.Errorf("selection failed: %s", r.Last().Response.Status.Verbose())
	}
	return ParseSelectResponse(r.Data())
}

// Describe generates a report of the selection.
func (r *SelectResult) Describe() string {
	var sb strings.Builder
	sb.WriteString("=== SELECT COMMAND REPORT ===\n")

	cmd := r.Trace[0].Command
	fmt.Fprintf(&sb, "[1] Command: SELECT %X (P1 %02X, P2 %02X)\n", cmd.Data, cmd.P1, cmd.P2)
	fmt.Fprintf(&sb, "    + Result:  %s\n", r.Trace[0].Response.Status.Verbose())
	if len(r.Trace) > 1 {
		fmt.Fprintf(&sb, "[2] Protocol: %d steps, final %s\n", len(r.Trace), r.Last().Response.Status.Verbose())
	}

	sb.WriteString("[=] FINAL OUTCOME:")
	info, err := r.File()
	if err != nil {
		fmt.Fprintf(&sb, "\n    - %v", err)
		return sb.String()
	}

	fmt.Fprintf(&sb, "\n    - File:      %04X (%s)", info.ID, info.Type)
	if info.Type == FileTypeEF {
		fmt.Fprintf(&sb, "\n    - Structure: %s, %d bytes", info.Structure, info.Size)
		if info.RecordLength > 0 {
			fmt.Fprintf(&sb, " (%d records of %d)", info.RecordCount, info.RecordLength)
		}
	}
	if info.FCP != nil {
		tlv.WriteStructFields(&sb, "FCP", info.FCP)
	}
	return sb.String()
}
