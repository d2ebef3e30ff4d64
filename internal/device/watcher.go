package device

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// StatusSource is the part of the client the watcher needs.
type StatusSource interface {
	IsConnected(ctx context.Context) (bool, error)
}

// Watcher polls /isConnected and reports every observation
type Watcher struct {
	src      StatusSource
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	status ConnectionStatus

	done chan struct{}
	once sync.Once

	// BeforePoll, when set, is called right before each request. Its result
	// is carried in ConnectionStatus.Seq.
	BeforePoll func() uint64

	// OnStatus is called after every poll
	OnStatus func(ConnectionStatus)
}

// NewWatcher creates a watcher polling src every interval.
func NewWatcher(src StatusSource, interval time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{
		src:      src,
		interval: interval,
		timeout:  5 * time.Second,
		log:      log.With().Str("component", "watcher").Logger(),
		done:     make(chan struct{}),
	}
}

// Start begins the polling loop. A zero interval leaves the watcher idle.
func (w *Watcher) Start() {
	if w.interval <= 0 {
		return
	}
	go w.pollLoop()
}

// Stop stops the polling loop
func (w *Watcher) Stop() {
	w.once.Do(func() { close(w.done) })
}

// Status returns the last observed status
func (w *Watcher) Status() ConnectionStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

func (w *Watcher) pollLoop() {
	w.Poll()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.Poll()
		}
	}
}

// Poll performs one status check.
func (w *Watcher) Poll() ConnectionStatus {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	var seq uint64
	if w.BeforePoll != nil {
		seq = w.BeforePoll()
	}
	connected, err := w.src.IsConnected(ctx)

	w.mu.Lock()
	prev := w.status
	w.status.Connected = connected && err == nil
	w.status.Text = StatusText(connected, err)
	if err != nil {
		w.status.LastError = err.Error()
	} else {
		w.status.LastError = ""
		w.status.LastSeen = time.Now()
	}
	w.status.Seq = seq
	st := w.status
	w.mu.Unlock()

	if prev.Text != st.Text {
		w.log.Info().Str("status", st.Text).Str("error", st.LastError).Msg("connection status changed")
	}
	if w.OnStatus != nil {
		w.OnStatus(st)
	}
	return st
}
