package exception

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/zakat/logx"
	"github.com/mezonai/zakat/monitoring"
)

// SafeGo runs fn in a goroutine, recovering and counting any panic.
func SafeGo(name string, fn func()) {
	go func() {
		defer recoverAndLog(name, false)
		fn()
	}()
}

// SafeGoWithPanic is SafeGo for goroutines the process cannot run without.
func SafeGoWithPanic(name string, fn func()) {
	go func() {
		defer recoverAndLog(name, true)
		fn()
	}()
}

// Run calls fn on the current goroutine and turns a panic into a logged,
// counted event. It reports whether fn returned normally.
func Run(name string, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			monitoring.IncreasePanicCount()
			logx.Error("PANIC", "Panic in: ", name, r, string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

func recoverAndLog(name string, exit bool) {
	if r := recover(); r != nil {
		monitoring.IncreasePanicCount()
		logx.Error("PANIC", "Panic in: ", name, r, string(debug.Stack()))
		if exit {
			os.Exit(1)
		}
	}
}
