package audio

import (
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

var (
	errSelectionAborted = errors.New("device selection aborted")
	errNoDevices        = errors.New("no capture devices found")
)

// SelectDevice lets the user pick the microphone used for voice capture.
// With a single device there is nothing to choose and no prompt is shown.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	switch len(devices) {
	case 0:
		return nil, errNoDevices
	case 1:
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("choosing among %d devices needs a terminal, use -device", len(devices))
	}
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	return pickDevice(os.Stdin, os.Stdout, devices)
}

// picker is the list state behind SelectDevice.
type picker struct {
	devices []DeviceInfo
	cursor  int
}

type pickResult int

const (
	pickPending pickResult = iota
	pickChosen
	pickAborted
)

// key applies one keystroke: arrows or j/k move, 1-9 jump, Enter picks and
// Ctrl+C aborts.
func (p *picker) key(b []byte) pickResult {
	last := len(p.devices) - 1
	if len(b) == 3 && b[0] == 0x1b && b[1] == '[' {
		switch b[2] {
		case 'A':
			p.cursor = max(p.cursor-1, 0)
		case 'B':
			p.cursor = min(p.cursor+1, last)
		}
		return pickPending
	}
	if len(b) != 1 {
		return pickPending
	}
	switch c := b[0]; {
	case c == '\r' || c == '\n':
		return pickChosen
	case c == 3:
		return pickAborted
	case c == 'k':
		p.cursor = max(p.cursor-1, 0)
	case c == 'j':
		p.cursor = min(p.cursor+1, last)
	case c >= '1' && c <= '9' && int(c-'1') <= last:
		p.cursor = int(c - '1')
	}
	return pickPending
}

func (p *picker) render(w io.Writer) {
	fmt.Fprint(w, "\r\x1b[J")
	fmt.Fprint(w, "Select microphone (↑/↓ or 1-9, Enter to confirm):\r\n\r\n")
	for i, d := range p.devices {
		tag := ""
		if IsBluetooth(d.Name) {
			tag = " \x1b[33m[⚠ bluetooth: lower transcription quality]\x1b[0m"
		}
		if i == p.cursor {
			fmt.Fprintf(w, "  \x1b[1;36m▶ %d. %s%s\x1b[0m\r\n", i+1, d.Name, tag)
		} else {
			fmt.Fprintf(w, "    %d. %s%s\r\n", i+1, d.Name, tag)
		}
	}
}

func pickDevice(r io.Reader, w io.Writer, devices []DeviceInfo) (*DeviceInfo, error) {
	p := &picker{devices: devices}
	p.render(w)

	buf := make([]byte, 3)
	for {
		n, err := r.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}
		switch p.key(buf[:n]) {
		case pickChosen:
			fmt.Fprint(w, "\r\n")
			return &p.devices[p.cursor], nil
		case pickAborted:
			fmt.Fprint(w, "\r\n")
			return nil, errSelectionAborted
		}
		fmt.Fprintf(w, "\x1b[%dA", len(devices)+2)
		p.render(w)
	}
}
