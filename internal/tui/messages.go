// Package tui implements a Bubble Tea terminal panel over the same controller
// as the web page.
package tui

import "github.com/eltechnic0/arduino-control/internal/panel"

// ActionDoneMsg signals that a typed command finished.
type ActionDoneMsg struct {
	Command Command
	Err     error
}

// ViewMsg carries a view pushed by the controller, e.g. from the status watcher.
type ViewMsg struct {
	View panel.View
}

// FlashExpiredMsg dismisses the flash of generation Gen. Older generations
// are ignored so a newer flash keeps its full timeout.
type FlashExpiredMsg struct {
	Gen uint64
}
