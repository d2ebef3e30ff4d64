package logging

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Entry represents a single log entry
type Entry struct {
	Timestamp time.Time         `json:"timestamp"`
	Level     string            `json:"level"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// Buffer is a thread-safe ring buffer for log entries. It implements
// zerolog.LevelWriter so it can sit next to the console output in a
// zerolog.MultiLevelWriter.
type Buffer struct {
	mu      sync.RWMutex
	entries []Entry
	cap     int
}

var _ zerolog.LevelWriter = (*Buffer)(nil)

// NewBuffer creates a new log buffer with the given capacity
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}
}

// Add adds a log entry to the buffer
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	if len(b.entries) >= b.cap {
		// Shift everything left by 1, drop oldest
		copy(b.entries, b.entries[1:])
		b.entries[len(b.entries)-1] = e
	} else {
		b.entries = append(b.entries, e)
	}
}

// Entries returns all entries, optionally filtered by level
func (b *Buffer) Entries(levels []string) []Entry {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if len(levels) == 0 {
		result := make([]Entry, len(b.entries))
		copy(result, b.entries)
		return result
	}

	levelSet := make(map[string]bool)
	for _, l := range levels {
		levelSet[strings.ToLower(l)] = true
	}

	result := make([]Entry, 0)
	for _, e := range b.entries {
		if levelSet[e.Level] {
			result = append(result, e)
		}
	}
	return result
}

// Clear removes all entries
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = b.entries[:0]
}

// Write records an event whose level is unknown.
func (b *Buffer) Write(p []byte) (int, error) {
	return b.WriteLevel(zerolog.NoLevel, p)
}

// WriteLevel decodes one zerolog JSON event into an Entry.
func (b *Buffer) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(p, &raw); err != nil {
		msg := strings.TrimSpace(string(p))
		if msg != "" {
			b.Add(Entry{Level: levelName(level), Message: msg})
		}
		return len(p), nil
	}

	e := Entry{Level: levelName(level)}
	for k, v := range raw {
		switch k {
		case zerolog.MessageFieldName:
			e.Message, _ = v.(string)
		case zerolog.LevelFieldName:
			if s, ok := v.(string); ok && level == zerolog.NoLevel {
				e.Level = s
			}
		case zerolog.TimestampFieldName:
			if s, ok := v.(string); ok {
				if ts, err := time.Parse(zerolog.TimeFieldFormat, s); err == nil {
					e.Timestamp = ts
				}
			}
		default:
			if e.Fields == nil {
				e.Fields = make(map[string]string)
			}
			e.Fields[k] = fieldString(v)
		}
	}
	b.Add(e)
	return len(p), nil
}

func levelName(l zerolog.Level) string {
	if l == zerolog.NoLevel {
		return "info"
	}
	return l.String()
}

func fieldString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	default:
		out, err := json.Marshal(x)
		if err != nil {
			return ""
		}
		return string(out)
	}
}
