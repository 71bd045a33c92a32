package network

import (
	"bufio"
	"bytes"
	"errors"
)

var (
	ErrLineTooLong = errors.New("the size of line is larger than the limit")
)

const lineDelimiter = '\n'

// Packet is one outbound frame, ready to hit the wire.
type Packet interface {
	Serialize() []byte
}

// Protocol reads one inbound packet from a connection's buffered stream.
type Protocol interface {
	ReadPacket(r *bufio.Reader) (Packet, error)
}

// LinePacket is a single newline-terminated UTF-8 text message.
type LinePacket struct {
	line string
}

func NewLinePacket(line string) *LinePacket {
	return &LinePacket{line: line}
}

// Line returns the message without its trailing newline.
func (lp *LinePacket) Line() string {
	return lp.line
}

func (lp *LinePacket) Serialize() []byte {
	buff := make([]byte, 0, len(lp.line)+1)
	buff = append(buff, lp.line...)
	buff = append(buff, lineDelimiter)
	return buff
}

// LineProtocol frames packets as newline-terminated lines. A line longer
// than MaxLineLength is refused and the connection is dropped; the limit
// is enforced while reading, so an oversized line is never buffered whole.
type LineProtocol struct {
	MaxLineLength int
}

func (lp *LineProtocol) ReadPacket(r *bufio.Reader) (Packet, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice(lineDelimiter)
		line = append(line, chunk...)
		if lp.MaxLineLength > 0 && len(line) > lp.MaxLineLength {
			return nil, ErrLineTooLong
		}
		if err == nil {
			break
		}
		if err != bufio.ErrBufferFull {
			return nil, err
		}
	}
	line = bytes.TrimRight(line, "\r\n")
	return NewLinePacket(string(line)), nil
}
