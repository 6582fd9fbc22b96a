package cdpcontrol

import (
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/runtime"
)

const maxConsoleEntries = 50

// consoleLog keeps the uncaught exceptions and console.error calls of one
// tab, oldest first, capped at maxConsoleEntries.
type consoleLog struct {
	mu      sync.Mutex
	entries []string
	dropped int
}

func (c *consoleLog) listen(ev any) {
	switch ev := ev.(type) {
	case *runtime.EventExceptionThrown:
		if ev.ExceptionDetails == nil {
			return
		}
		msg := ev.ExceptionDetails.Text
		if exc := ev.ExceptionDetails.Exception; exc != nil && exc.Description != "" {
			msg = exc.Description
		}
		c.add("exception: " + firstLine(msg))

	case *runtime.EventConsoleAPICalled:
		if ev.Type != runtime.APITypeError {
			return
		}
		parts := make([]string, 0, len(ev.Args))
		for _, arg := range ev.Args {
			switch {
			case len(arg.Value) > 0:
				parts = append(parts, strings.Trim(string(arg.Value), `"`))
			case arg.Description != "":
				parts = append(parts, firstLine(arg.Description))
			}
		}
		c.add("console.error: " + strings.Join(parts, " "))
	}
}

func (c *consoleLog) add(entry string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxConsoleEntries {
		c.dropped++
		return
	}
	c.entries = append(c.entries, entry)
}

func (c *consoleLog) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]string(nil), c.entries...)
	if c.dropped > 0 {
		out = append(out, fmt.Sprintf("... %d more", c.dropped))
	}
	return out
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
