package panel

import (
	"time"

	"github.com/google/uuid"

	"github.com/eltechnic0/arduino-control/internal/command"
)

// Flash kinds, matching the toast classes of the web page.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashInfo    = "info"
)

// Flash is a transient notification.
type Flash struct {
	Text    string    `json:"text"`
	Kind    string    `json:"kind"`
	Expires time.Time `json:"expires"`
}

// Entry is one line of the command history.
type Entry struct {
	ID  uuid.UUID    `json:"id"`
	Cmd command.Name `json:"cmd"`

	// Label is the short description shown in the list, e.g. "vset 3,9 100,200 500".
	Label string `json:"label"`

	// Command is the envelope text used for replay. Lines produced by a
	// client-side rejection have no command and cannot be replayed.
	Command string `json:"command,omitempty"`

	OK      bool      `json:"ok"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Replayable reports whether the entry can be sent again.
func (e Entry) Replayable() bool { return e.Command != "" }

// ScriptEntry is one successfully run script.
type ScriptEntry struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// GridState is the coordinate widget: the last point and its options.
type GridState struct {
	X          int  `json:"x"`
	Y          int  `json:"y"`
	Right      int  `json:"right"`
	Top        int  `json:"top"`
	Left       int  `json:"left"`
	Bottom     int  `json:"bottom"`
	Settling   int  `json:"settling"`
	Resolution int  `json:"resolution"`
	Autosend   bool `json:"autosend"`
}

func (g GridState) grid() command.Grid {
	return command.Grid{Right: g.Right, Top: g.Top, Left: g.Left, Bottom: g.Bottom}
}

// GridOptions are the editable grid settings.
type GridOptions struct {
	Right      int  `json:"right"`
	Top        int  `json:"top"`
	Left       int  `json:"left"`
	Bottom     int  `json:"bottom"`
	Settling   int  `json:"settling"`
	Resolution int  `json:"resolution"`
	Autosend   bool `json:"autosend"`
}

// Calibration is the state of the calibration modal.
type Calibration struct {
	Open bool   `json:"open"`
	HTML string `json:"html,omitempty"`
}

// View is a snapshot of everything the panel renders. Lists are newest first.
// Version grows with every snapshot; consumers ignore a view whose version is
// not above the last one they rendered.
type View struct {
	Version     uint64        `json:"version"`
	Connection  string        `json:"connection"`
	Readings    []string      `json:"readings"`
	ReadPins    []int         `json:"read_pins"`
	WritePins   []int         `json:"write_pins"`
	History     []Entry       `json:"history"`
	Scripts     []ScriptEntry `json:"scripts"`
	Flash       *Flash        `json:"flash,omitempty"`
	Grid        GridState     `json:"grid"`
	Verbose     bool          `json:"verbose"`
	Calibration Calibration   `json:"calibration"`
}
