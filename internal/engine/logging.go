package engine

import (
	"log"
	"os"
)

// logger mirrors the original interceptor's direct writes to fd 2 and the
// teacher's plain log.Printf usage throughout cmd/ — no structured logging
// library appears anywhere in the teacher's go.mod, so none is introduced
// here either.
var logger = log.New(os.Stderr, "[memcloud-vm] ", log.Ltime)

func logf(format string, args ...interface{}) {
	logger.Printf(format, args...)
}
