package logger

import (
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"
)

var (
	logChan = make(chan []any, 16)
	dropped atomic.Uint32
)

// Print queues one line for the background writer. It never blocks the
// control loop: lines are dropped while the queue is full.
func Print(args ...any) {
	select {
	case logChan <- args:
	default:
		dropped.Add(1)
	}
}

func Printf(format string, args ...any) {
	Print(fmt.Sprintf(format, args...))
}

// Dropped counts lines lost to a full queue.
func Dropped() uint32 {
	return dropped.Load()
}

// Flush waits up to d for the queue to drain.
func Flush(d time.Duration) {
	deadline := time.Now().Add(d)
	for len(logChan) > 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
}

func line(args ...any) string {
	var sb strings.Builder
	for i, v := range args {
		if i > 0 {
			sb.WriteByte(' ')
		}
		switch vv := v.(type) {
		case []byte:
			sb.WriteString(hex.EncodeToString(vv))
		default:
			fmt.Fprint(&sb, v)
		}
	}
	return sb.String()
}

func init() {
	go func() {
		for v := range logChan {
			log.Print(line(v...))
		}
	}()
}
