package iso7816

import (
	"fmt"

	"github.com/gregLibert/simota/pkg/tlv"
)

// EF_ICCID holds the card identification number, 10 bytes of swapped BCD
// under the MF (ETSI TS 102 221, 13.2).
const (
	EF_ICCID   uint16 = 0x2FE2
	iccidBytes        = 10
)

// ReadICCID selects EF_ICCID and returns the ICCID digits.
func ReadICCID(c *Client, cla Class) (string, error) {
	var file *FileInfo
	for _, cmd := range SelectPath(cla, []uint16{MF, EF_ICCID}) {
		trace, err := c.Send(cmd)
		if err != nil {
			return "", err
		}
		res, err := NewSelectResult(trace)
		if err != nil {
			return "", err
		}
		if !res.IsSuccess() {
			return "", fmt.Errorf("SELECT %X: %s", cmd.Data, res.Last().Response.Status.Verbose())
		}
		// P2 '0C' or a GSM DF selection may return nothing to parse.
		if file, err = res.File(); err != nil {
			file = nil
		}
	}

	n := iccidBytes
	if file != nil && file.Type == FileTypeEF && file.Size > 0 && file.Size < n {
		n = file.Size
	}

	trace, err := c.Send(ReadBinary(cla, 0, n))
	if err != nil {
		return "", err
	}
	res, err := NewReadResult(trace)
	if err != nil {
		return "", err
	}
	if !res.IsSuccess() {
		return "", fmt.Errorf("READ BINARY EF_ICCID: %s", res.Last().Response.Status.Verbose())
	}
	return tlv.SwappedBCD(res.Data()), nil
}
