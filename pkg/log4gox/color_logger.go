// Package log4gox supplies a colored console writer for log4go.
package log4gox

import (
	"fmt"
	"io"
	"os"

	"github.com/alecthomas/log4go"
)

var stdout io.Writer = os.Stdout

// ANSI foreground colors per log4go level, FINEST through CRITICAL.
var (
	levelColors  = []int{30, 30, 32, 37, 37, 33, 31, 34}
	levelStrings = []string{"FNST", "FINE", "DEBG", "TRAC", "INFO", "WARN", "EROR", "CRIT"}
)

const escape = 0x1B

// ConsoleLogWriter prints level-colored records to standard output.
type ConsoleLogWriter chan *log4go.LogRecord

// NewColorConsoleLogWriter creates a new ConsoleLogWriter
func NewColorConsoleLogWriter() ConsoleLogWriter {
	records := make(ConsoleLogWriter, log4go.LogBufferLength)
	go records.run(stdout)
	return records
}

func (w *ConsoleLogWriter) run(out io.Writer) {
	var timestr string
	var timestrAt int64

	for rec := range *w {
		if at := rec.Created.UnixNano() / 1e9; at != timestrAt {
			timestr, timestrAt = rec.Created.Format("01/02/06 15:04:05"), at
		}
		_, _ = fmt.Fprintf(out, "%c[%dm[%s] [%s] (%s) %s\n%c[0m",
			escape,
			levelColors[rec.Level],
			timestr,
			levelStrings[rec.Level],
			rec.Source,
			rec.Message,
			escape)
	}
}

// LogWrite queues a record for output; required by log4go.LogWriter.
func (w ConsoleLogWriter) LogWrite(rec *log4go.LogRecord) {
	w <- rec
}

// Close drains and stops the writer; required by log4go.LogWriter.
func (w ConsoleLogWriter) Close() {
	close(w)
}
