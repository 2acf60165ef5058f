package txrx

import (
	"io"
	"log"
	"os"
)

// debugLog and warnLog are gated by TXRX_DEBUG the same way GoJanus gates its
// debug logger by GO_JANUS_DEBUG: silent (io.Discard) unless the variable is
// set, never configurable through the public API.
var (
	debugLog *log.Logger
	warnLog  *log.Logger
)

func init() {
	out := io.Discard
	if os.Getenv("TXRX_DEBUG") != "" {
		out = os.Stderr
	}
	debugLog = log.New(out, "[txrx] DEBUG: ", log.LstdFlags|log.Lmicroseconds)
	warnLog = log.New(out, "[txrx] WARN: ", log.LstdFlags|log.Lmicroseconds)
}
