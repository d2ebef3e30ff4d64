package device

import "time"

// Connection status texts shown by the panel.
const (
	StatusConnected    = "Connected"
	StatusDisconnected = "Disconnected"
	StatusServerError  = "Server connection error"
)

// ConnectionStatus represents the last observed backend connection state
type ConnectionStatus struct {
	Connected bool      `json:"connected"`
	Text      string    `json:"text"`
	LastError string    `json:"last_error,omitempty"`
	LastSeen  time.Time `json:"last_seen"`

	// Seq is the sequence reserved by Watcher.BeforePoll for this poll.
	Seq uint64 `json:"-"`
}

// StatusText maps an /isConnected outcome to the panel text.
func StatusText(connected bool, err error) string {
	switch {
	case err != nil:
		return StatusServerError
	case connected:
		return StatusConnected
	default:
		return StatusDisconnected
	}
}
