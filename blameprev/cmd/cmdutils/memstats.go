package cmdutils

import (
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// StartMemLogs writes heap usage to wr every interval until onEnd is called.
func StartMemLogs(wr io.Writer, interval time.Duration) (onEnd func()) {
	start := time.Now()
	ticker := time.NewTicker(interval)
	done := make(chan bool)

	log := func() {
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		fmt.Fprintf(wr, "[%v][%v] utilization\n", color.YellowString("%v", time.Since(start).Round(time.Second)), color.YellowString("%v", humanize.Bytes(m.HeapAlloc)))
	}

	go func() {
		for {
			select {
			case <-ticker.C:
				log()
			case <-done:
				return
			}
		}
	}()

	log()

	return func() {
		ticker.Stop()
		close(done)
		log()
	}
}
