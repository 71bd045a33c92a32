// Package wire implements the pipe-delimited text protocol spoken between
// the game server and its clients.
//
// Every message is a single UTF-8 line:
//
//	COMMAND|arg1|arg2|...
//
// The delimiter is reserved and never appears inside payload fields.
package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// Delimiter separates the command token and every argument.
const Delimiter = "|"

// Commands exchanged over the wire. Client-to-server commands are relayed
// back out verbatim where the protocol calls for it (JUMP, STATE).
const (
	CmdJoin        = "JOIN"
	CmdWelcome     = "WELCOME"
	CmdCreateRoom  = "CREATE_ROOM"
	CmdRoomCreated = "ROOM_CREATED"
	CmdJoinRoom    = "JOIN_ROOM"
	CmdRoomJoined  = "ROOM_JOINED"
	CmdStart       = "START"
	CmdJump        = "JUMP"
	CmdState       = "STATE"
	CmdBulkState   = "BULK_STATE"
	CmdLeft        = "LEFT"
	CmdError       = "ERROR"
)

// ProtocolError reports a line that cannot be decoded, or a decoded message
// whose argument shape is wrong for its command. It is always recoverable:
// the consumer drops the message and keeps the connection open.
type ProtocolError struct {
	Line   string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: %s: %q", e.Reason, e.Line)
}

// Message is one decoded line: an uppercase command token and its raw
// string arguments, in wire order.
type Message struct {
	Command string
	Args    []string
}

// Arg returns the i-th argument, or "" when the message is too short.
func (m Message) Arg(i int) string {
	if i < 0 || i >= len(m.Args) {
		return ""
	}
	return m.Args[i]
}

func (m Message) String() string {
	if len(m.Args) == 0 {
		return m.Command
	}
	return m.Command + Delimiter + strings.Join(m.Args, Delimiter)
}

// Decode splits one raw line into a Message. The command token is trimmed
// and uppercased; arguments are kept exactly as received, including empty
// tokens. Argument counts are not validated here, that belongs to the
// typed parsers and the dispatch code.
func Decode(line string) (Message, error) {
	if strings.TrimSpace(line) == "" {
		return Message{}, &ProtocolError{Line: line, Reason: "blank line"}
	}
	tokens := strings.Split(line, Delimiter)
	command := strings.ToUpper(strings.TrimSpace(tokens[0]))
	if command == "" {
		return Message{}, &ProtocolError{Line: line, Reason: "missing command"}
	}
	return Message{Command: command, Args: tokens[1:]}, nil
}

// Encode joins a command and its arguments into one line, without the
// trailing newline. A nil argument renders as an empty token, never as a
// literal "null" or "<nil>".
func Encode(command string, args ...any) string {
	var b strings.Builder
	b.WriteString(command)
	for _, arg := range args {
		b.WriteString(Delimiter)
		if arg == nil {
			continue
		}
		b.WriteString(formatArg(arg))
	}
	return b.String()
}

func formatArg(arg any) string {
	switch v := arg.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'g', -1, 32)
	case int:
		return strconv.Itoa(v)
	default:
		return fmt.Sprint(v)
	}
}
