package config

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/term"
)

// Prompter supplies key material missing from the configuration file.
type Prompter interface {
	ReadKey(label string) ([]byte, error)
}

// TerminalPrompter reads hex keys from a terminal without echo. When In is
// not a terminal, one line per key is read instead.
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer

	lines *bufio.Reader
}

// NewTerminalPrompter prompts on stderr and reads stdin.
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// ReadKey implements Prompter.
func (p *TerminalPrompter) ReadKey(label string) ([]byte, error) {
	fmt.Fprintf(p.Out, "%s (hex): ", label)

	var line string
	if fd := int(p.In.Fd()); term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		if err != nil {
			return nil, errors.Wrapf(err, "read %s", label)
		}
		line = string(raw)
	} else {
		if p.lines == nil {
			p.lines = bufio.NewReader(p.In)
		}
		s, err := p.lines.ReadString('\n')
		if err != nil && (err != io.EOF || s == "") {
			return nil, errors.Wrapf(err, "read %s", label)
		}
		line = s
	}

	key, err := hex.DecodeString(strings.Join(strings.Fields(line), ""))
	if err != nil {
		return nil, errors.Wrapf(err, "%s", label)
	}
	return key, nil
}
