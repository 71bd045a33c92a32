package wire

import "strconv"

// PlayerState is the last-known position and score of one player. A STATE
// update replaces the previous instance wholesale; nothing mutates in place.
type PlayerState struct {
	PlayerID string
	X        float64
	Y        float64
	Score    int
}

// Typed builders for every server- and client-originated message.

func Join() string                     { return Encode(CmdJoin) }
func Welcome(playerID string) string   { return Encode(CmdWelcome, playerID) }
func CreateRoom() string               { return Encode(CmdCreateRoom) }
func JoinRoom(roomID string) string    { return Encode(CmdJoinRoom, roomID) }
func RoomCreated(roomID string) string { return Encode(CmdRoomCreated, roomID) }
func RoomJoined(roomID string) string  { return Encode(CmdRoomJoined, roomID) }
func Start() string                    { return Encode(CmdStart) }
func Jump(playerID string) string      { return Encode(CmdJump, playerID) }
func Left(playerID string) string      { return Encode(CmdLeft, playerID) }
func ServerError(reason string) string { return Encode(CmdError, reason) }

func State(playerID string, x, y float64, score int) string {
	return Encode(CmdState, playerID, x, y, score)
}

// BulkState encodes a full-room snapshot:
//
//	BULK_STATE|count|playerId|x|y|score|playerId|x|y|score|...
func BulkState(states []PlayerState) string {
	args := make([]any, 0, 1+len(states)*4)
	args = append(args, len(states))
	for _, s := range states {
		args = append(args, s.PlayerID, s.X, s.Y, s.Score)
	}
	return Encode(CmdBulkState, args...)
}

// ParseState validates and extracts a STATE message:
//
//	STATE|playerId|x|y|score
func ParseState(msg Message) (PlayerState, error) {
	if msg.Command != CmdState || len(msg.Args) < 4 {
		return PlayerState{}, &ProtocolError{Line: msg.String(), Reason: "invalid STATE message"}
	}
	return parseStateFields(msg, msg.Args[0:4])
}

// ParseBulkState validates and extracts a BULK_STATE snapshot. Entry order
// is preserved.
func ParseBulkState(msg Message) ([]PlayerState, error) {
	if msg.Command != CmdBulkState || len(msg.Args) < 1 {
		return nil, &ProtocolError{Line: msg.String(), Reason: "invalid BULK_STATE message"}
	}
	count, err := strconv.Atoi(msg.Args[0])
	if err != nil || count < 0 {
		return nil, &ProtocolError{Line: msg.String(), Reason: "bad BULK_STATE count"}
	}
	// compare by division: 1+count*4 overflows for a hostile count
	if count > (len(msg.Args)-1)/4 {
		return nil, &ProtocolError{Line: msg.String(), Reason: "incomplete BULK_STATE message"}
	}

	states := make([]PlayerState, 0, count)
	cursor := 1
	for i := 0; i < count; i++ {
		s, err := parseStateFields(msg, msg.Args[cursor:cursor+4])
		if err != nil {
			return nil, err
		}
		states = append(states, s)
		cursor += 4
	}
	return states, nil
}

func parseStateFields(msg Message, fields []string) (PlayerState, error) {
	x, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return PlayerState{}, &ProtocolError{Line: msg.String(), Reason: "bad x coordinate"}
	}
	y, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return PlayerState{}, &ProtocolError{Line: msg.String(), Reason: "bad y coordinate"}
	}
	score, err := strconv.Atoi(fields[3])
	if err != nil {
		return PlayerState{}, &ProtocolError{Line: msg.String(), Reason: "bad score"}
	}
	return PlayerState{PlayerID: fields[0], X: x, Y: y, Score: score}, nil
}
