package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/log4go"
	"github.com/z3firox-ux/flappy-bird-online/pkg/log4gox"
	"github.com/z3firox-ux/flappy-bird-online/server"
)

var (
	tcpAddress = flag.String("tcp", ":7777", "tcp listen address(':7777' means localhost:7777)")
	kcpAddress = flag.String("kcp", "", "optional kcp listen address")
	tick       = flag.Duration("tick", server.DefaultSnapshotTick, "bulk state broadcast interval")
	debugLog   = flag.Bool("log", true, "debug log")
)

func main() {
	flag.Parse()

	log4go.Close()
	level := log4go.INFO
	if *debugLog {
		level = log4go.DEBUG
	}
	log4go.AddFilter("console", level, log4gox.NewColorConsoleLogWriter())

	gs, err := server.New(*tcpAddress, *tick)
	if err != nil {
		panic(err)
	}
	if *kcpAddress != "" {
		if err := gs.ListenKCP(*kcpAddress); err != nil {
			panic(err)
		}
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, os.Interrupt)
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	log4go.Info("[main] listening on %s", gs.Addr())
QUIT:
	for {
		select {
		case sig := <-sigs:
			log4go.Info("Signal: %s", sig.String())
			break QUIT
		case <-ticker.C:
			log4go.Info("[main] rooms=%d connections=%d", gs.RoomManager().RoomCount(), gs.ConnCount())
		}
	}
	log4go.Info("[main] quiting...")
	gs.Stop()
}
