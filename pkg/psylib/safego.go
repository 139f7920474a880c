package psylib

import (
	"log"
	"runtime/debug"
	"sync"
)

// safeGo runs fn in a goroutine with panic recovery. Loader backends
// run through this so a panicking backend surfaces as a pipeline error
// instead of crashing the host.
func safeGo(l *log.Logger, wg *sync.WaitGroup, context string, onPanic func(r any), fn func()) {
	go func() {
		if wg != nil {
			defer wg.Done()
		}
		defer func() {
			if r := recover(); r != nil {
				if l != nil {
					l.Printf("PANIC [%s]: %v\n%s", context, r, debug.Stack())
				}
				if onPanic != nil {
					onPanic(r)
				}
			}
		}()
		fn()
	}()
}
