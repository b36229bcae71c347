//go:build windows

package progress

import (
	"os"

	"golang.org/x/sys/windows"
)

// enableWindowsANSI turns on Virtual Terminal processing so mpb's cursor
// movement sequences render instead of printing as garbage.
func enableWindowsANSI(f *os.File) {
	handle := windows.Handle(f.Fd())
	var mode uint32

	if err := windows.GetConsoleMode(handle, &mode); err == nil {
		_ = windows.SetConsoleMode(handle, mode|windows.ENABLE_VIRTUAL_TERMINAL_PROCESSING)
	}
}
