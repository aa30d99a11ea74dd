package main

import (
	"os"
	"runtime/debug"

	"github.com/mezonai/zakat/cmd"
	"github.com/mezonai/zakat/logx"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			_ = logx.Errorf("LEDGER CRASHED: %v\n%s", r, debug.Stack())
			os.Exit(1)
		}
	}()

	cmd.Execute()
}
