//go:build windows

// Package console tells a terminal launch from a double-click and keeps
// Ctrl+C working on Windows while SDL holds the main thread.
package console

import (
	"log/slog"
	"sync"
	"syscall"
	"unsafe"
)

var (
	kernel32                  = syscall.NewLazyDLL("kernel32.dll")
	procGetConsoleWindow      = kernel32.NewProc("GetConsoleWindow")
	procGetConsoleProcessList = kernel32.NewProc("GetConsoleProcessList")
	procFreeConsole           = kernel32.NewProc("FreeConsole")
	procSetConsoleCtrlHandler = kernel32.NewProc("SetConsoleCtrlHandler")
)

const (
	ctrlC     = 0
	ctrlBreak = 1
)

// Interactive reports whether padmapper was started from a terminal. A
// console that only hosts this process was created for the double-click
// launch; it is released so no empty window lingers.
func Interactive() bool {
	if hwnd, _, _ := procGetConsoleWindow.Call(); hwnd == 0 {
		return false
	}
	var pids [2]uint32
	n, _, _ := procGetConsoleProcessList.Call(uintptr(unsafe.Pointer(&pids[0])), uintptr(len(pids)))
	if n > 1 {
		return true
	}
	procFreeConsole.Call()
	return false
}

var (
	handlerOnce sync.Once
	handler     uintptr
	interrupt   func()
	fired       sync.Once
)

// OnInterrupt calls fn once on Ctrl+C or Ctrl+Break. The returned function
// installs the handler again, for use after a library replaced it.
func OnInterrupt(fn func(), logger *slog.Logger) (rearm func()) {
	interrupt = fn
	handlerOnce.Do(func() {
		handler = syscall.NewCallback(func(ctrlType uint32) uintptr {
			if ctrlType != ctrlC && ctrlType != ctrlBreak {
				return 0
			}
			fired.Do(interrupt)
			return 1
		})
	})
	install := func() {
		if ret, _, err := procSetConsoleCtrlHandler.Call(handler, 1); ret == 0 {
			logger.Warn("console control handler not installed", "error", err)
		}
	}
	install()
	return install
}
