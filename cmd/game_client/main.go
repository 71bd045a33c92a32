// Command game_client is a terminal stand-in for the game's screens: it
// drives one client session by hand and prints every server event.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/z3firox-ux/flappy-bird-online/client"
	"github.com/z3firox-ux/flappy-bird-online/pkg/packet/wire"
)

var (
	serverAddr = flag.String("addr", "127.0.0.1:7777", "game server address")
	useKCP     = flag.Bool("kcp", false, "dial the server's kcp listener instead of tcp")
)

type display struct {
	serverColor *color.Color
	eventColor  *color.Color
	stateColor  *color.Color
	errColor    *color.Color
}

func newDisplay() *display {
	return &display{
		serverColor: color.New(color.FgCyan, color.Bold),
		eventColor:  color.New(color.FgGreen),
		stateColor:  color.New(color.FgYellow),
		errColor:    color.New(color.FgRed, color.Bold),
	}
}

// events arrive on the session's receive goroutine; color printing is safe
// there.
type eventPrinter struct {
	client.NopListener
	d *display
}

func (p *eventPrinter) OnConnected(playerID string) {
	p.d.serverColor.Printf("connected as %s\n", playerID)
}

func (p *eventPrinter) OnRoomCreated(roomID string) {
	p.d.eventColor.Printf("room %s created, waiting for an opponent\n", roomID)
}

func (p *eventPrinter) OnRoomJoined(roomID string) {
	p.d.eventColor.Printf("joined room %s\n", roomID)
}

func (p *eventPrinter) OnMatchStarted() {
	p.d.eventColor.Println("match started!")
}

func (p *eventPrinter) OnPlayerState(st wire.PlayerState) {
	p.d.stateColor.Printf("%s at (%.1f, %.1f) score=%d\n", st.PlayerID, st.X, st.Y, st.Score)
}

func (p *eventPrinter) OnSnapshot(states []wire.PlayerState) {
	for _, st := range states {
		p.d.stateColor.Printf("snapshot %s (%.1f, %.1f) score=%d\n", st.PlayerID, st.X, st.Y, st.Score)
	}
}

func (p *eventPrinter) OnPlayerJump(playerID string) {
	p.d.eventColor.Printf("%s jumped\n", playerID)
}

func (p *eventPrinter) OnPlayerLeft(playerID string) {
	p.d.errColor.Printf("%s left the room\n", playerID)
}

func (p *eventPrinter) OnServerError(reason string) {
	p.d.errColor.Printf("server error: %s\n", reason)
}

func (p *eventPrinter) OnDisconnected() {
	p.d.errColor.Println("disconnected")
}

func (p *eventPrinter) OnTransportError(err error) {
	p.d.errColor.Printf("transport error: %v\n", err)
}

func main() {
	flag.Parse()

	d := newDisplay()
	var c *client.Client
	if *useKCP {
		c = client.NewKCP(*serverAddr)
	} else {
		c = client.New(*serverAddr)
	}
	c.SetListener(&eventPrinter{d: d})

	if err := c.Connect(); err != nil {
		d.errColor.Printf("connect failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("commands: create | join <roomId> | jump | state <x> <y> <score> | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "create":
			_ = c.CreateRoom()
		case "join":
			if len(fields) < 2 {
				d.errColor.Println("usage: join <roomId>")
				continue
			}
			_ = c.JoinRoom(fields[1])
		case "jump":
			c.SendJump()
		case "state":
			if len(fields) < 4 {
				d.errColor.Println("usage: state <x> <y> <score>")
				continue
			}
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			score, errS := strconv.Atoi(fields[3])
			if errX != nil || errY != nil || errS != nil {
				d.errColor.Println("state arguments must be numeric")
				continue
			}
			c.SendState(x, y, score)
		case "quit":
			c.Disconnect()
			return
		default:
			d.errColor.Printf("unknown command: %s\n", fields[0])
		}
	}
	c.Disconnect()
}
