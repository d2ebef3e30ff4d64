// Package panel holds the control panel: the controller owning the view state,
// and the HTTP server, web page and websocket hub presenting it.
package panel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/eltechnic0/arduino-control/internal/command"
	"github.com/eltechnic0/arduino-control/internal/config"
	"github.com/eltechnic0/arduino-control/internal/device"
	"github.com/eltechnic0/arduino-control/internal/history"
)

// Messages shown when the backend cannot be reached.
const (
	MsgServerError   = device.StatusServerError
	MsgInvalidScript = "Invalid script input"
)

var (
	// ErrNotFound is returned for an unknown history or script entry.
	ErrNotFound = errors.New("panel: entry not found")
	// ErrNotReplayable is returned when replaying a rejected command line.
	ErrNotReplayable = errors.New("panel: entry cannot be replayed")
)

// Backend is the serial backend as seen by the panel.
type Backend interface {
	IsConnected(ctx context.Context) (bool, error)
	Connect(ctx context.Context) (string, error)
	Reconnect(ctx context.Context) (string, error)
	Disconnect(ctx context.Context) (string, error)
	Comtest(ctx context.Context) (device.Result, error)
	VSet(ctx context.Context, req command.VSet) (device.Result, error)
	VRead(ctx context.Context, req command.VRead) (device.Result, error)
	Verbose(ctx context.Context, on bool) (device.Result, error)
	Script(ctx context.Context, raw json.RawMessage) (device.Result, error)
	CalibrationPage(ctx context.Context) (string, error)
}

// Controller validates user actions, calls the backend and keeps the view
// state. It is safe for concurrent use; backend calls run outside the lock
// and their history lines append in completion order.
type Controller struct {
	backend      Backend
	rules        command.Rules
	flashTimeout time.Duration
	log          zerolog.Logger

	commands *history.Buffer[Entry]
	scripts  *history.Buffer[ScriptEntry]

	mu          sync.Mutex
	connection  string
	readings    []string
	flash       *Flash
	grid        GridState
	verbose     bool
	calibration Calibration

	// Display targets remember the sequence of the response they show, so a
	// response that was issued before it cannot overwrite a newer one.
	seq     uint64
	applied map[string]uint64
	version uint64

	listenersMu sync.Mutex
	listeners   map[int]func(View)
	nextID      int

	now func() time.Time
}

// NewController creates a controller from the panel configuration.
func NewController(backend Backend, cfg config.PanelConfig, log zerolog.Logger) *Controller {
	rules := command.DefaultRules()
	if len(cfg.VSetPins) > 0 {
		rules.VSetPins = cfg.VSetPins
	}
	if len(cfg.VReadPins) > 0 {
		rules.VReadPins = cfg.VReadPins
	}
	resolution := cfg.Grid.Resolution
	if resolution < 1 {
		resolution = 1
	}

	return &Controller{
		backend:      backend,
		rules:        rules,
		flashTimeout: cfg.FlashTimeout,
		log:          log.With().Str("component", "panel").Logger(),
		commands:     history.New[Entry](cfg.CommandHistoryMax),
		scripts:      history.New[ScriptEntry](cfg.ScriptHistoryMax),
		readings:     make([]string, len(rules.VReadPins)),
		grid: GridState{
			Right:      cfg.Grid.Right,
			Top:        cfg.Grid.Top,
			Left:       cfg.Grid.Left,
			Bottom:     cfg.Grid.Bottom,
			Settling:   cfg.Grid.Settling,
			Resolution: resolution,
			Autosend:   cfg.Grid.Autosend,
		},
		applied:   make(map[string]uint64),
		listeners: make(map[int]func(View)),
		now:       time.Now,
	}
}

// Rules returns the pin rules in effect.
func (c *Controller) Rules() command.Rules { return c.rules }

// View returns a snapshot of the panel state. An expired flash is omitted.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.version++
	v := View{
		Version:     c.version,
		Connection:  c.connection,
		Readings:    append([]string(nil), c.readings...),
		ReadPins:    c.rules.VReadPins,
		WritePins:   c.rules.VSetPins,
		Grid:        c.grid,
		Verbose:     c.verbose,
		Calibration: c.calibration,
	}
	if c.flash != nil && c.now().Before(c.flash.Expires) {
		f := *c.flash
		v.Flash = &f
	}
	v.History = c.commands.Newest()
	v.Scripts = c.scripts.Newest()
	return v
}

// Subscribe registers fn to receive the view after every change. The returned
// function removes it.
func (c *Controller) Subscribe(fn func(View)) func() {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.listenersMu.Lock()
		defer c.listenersMu.Unlock()
		delete(c.listeners, id)
	}
}

func (c *Controller) notify() {
	c.listenersMu.Lock()
	fns := make([]func(View), 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenersMu.Unlock()

	if len(fns) == 0 {
		return
	}
	v := c.View()
	for _, fn := range fns {
		fn(v)
	}
}

// issue takes the sequence number of a request about to be sent.
func (c *Controller) issue() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	return c.seq
}

// applyLocked reports whether a response with seq may update target.
func (c *Controller) applyLocked(target string, seq uint64) bool {
	if seq < c.applied[target] {
		return false
	}
	c.applied[target] = seq
	return true
}

func (c *Controller) setFlash(text, kind string) {
	c.mu.Lock()
	c.flash = &Flash{Text: text, Kind: kind, Expires: c.now().Add(c.flashTimeout)}
	c.mu.Unlock()
}

// DismissFlash clears the current notification.
func (c *Controller) DismissFlash() {
	c.mu.Lock()
	c.flash = nil
	c.mu.Unlock()
	c.notify()
}

// Refresh fetches the connection state.
func (c *Controller) Refresh(ctx context.Context) error {
	seq := c.issue()
	connected, err := c.backend.IsConnected(ctx)
	c.setConnection(seq, device.StatusText(connected, err))
	if err != nil {
		c.log.Warn().Err(err).Msg("connection refresh failed")
	}
	c.notify()
	return err
}

// IssueSeq reserves the sequence number of a status poll about to be sent.
func (c *Controller) IssueSeq() uint64 { return c.issue() }

// ApplyStatus shows a status observed by the watcher. A status carrying the
// sequence of its poll loses to any connection text issued after that poll.
func (c *Controller) ApplyStatus(st device.ConnectionStatus) {
	seq := st.Seq
	if seq == 0 {
		seq = c.issue()
	}
	c.setConnection(seq, st.Text)
	c.notify()
}

// Connect opens the serial connection.
func (c *Controller) Connect(ctx context.Context) error {
	return c.connectionOp(ctx, "connect", c.backend.Connect)
}

// Reconnect reopens the serial connection.
func (c *Controller) Reconnect(ctx context.Context) error {
	return c.connectionOp(ctx, "reconnect", c.backend.Reconnect)
}

// Disconnect closes the serial connection.
func (c *Controller) Disconnect(ctx context.Context) error {
	return c.connectionOp(ctx, "disconnect", c.backend.Disconnect)
}

func (c *Controller) connectionOp(ctx context.Context, name string, fn func(context.Context) (string, error)) error {
	seq := c.issue()
	text, err := fn(ctx)
	if err != nil {
		c.log.Warn().Err(err).Str("op", name).Msg("connection request failed")
		c.setConnection(seq, MsgServerError)
		c.setFlash(MsgServerError, FlashError)
		c.notify()
		return err
	}
	c.setConnection(seq, text)
	c.setFlash(text, FlashInfo)
	c.notify()
	return nil
}

func (c *Controller) setConnection(seq uint64, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applyLocked("connection", seq) {
		c.connection = text
	}
}

// Comtest runs the communication test.
func (c *Controller) Comtest(ctx context.Context) error {
	env, _ := command.NewEnvelope(command.ComtestCmd, nil)
	return c.dispatch(ctx, env, "comtest")
}

// VSetBatch sends a vset typed as "pins, values, settling".
func (c *Controller) VSetBatch(ctx context.Context, text string) error {
	vs, err := c.rules.ParseVSetBatch(text)
	if err != nil {
		return c.reject(command.VSetCmd, text, err)
	}
	return c.sendVSet(ctx, vs)
}

// VSetRow sends the value typed in one row of the output table.
func (c *Controller) VSetRow(ctx context.Context, row int, value, settling string) error {
	vs, err := c.rules.VSetRow(row, value, settling)
	if err != nil {
		return c.reject(command.VSetCmd, strings.TrimSpace(value+", "+settling), err)
	}
	return c.sendVSet(ctx, vs)
}

func (c *Controller) sendVSet(ctx context.Context, vs command.VSet) error {
	env, err := command.NewEnvelope(command.VSetCmd, vs)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, env, vsetLabel(vs))
}

// VReadBatch reads the pins typed as a space separated list.
func (c *Controller) VReadBatch(ctx context.Context, text string) error {
	vr, err := c.rules.ParseVReadBatch(text)
	if err != nil {
		return c.reject(command.VReadCmd, text, err)
	}
	return c.sendVRead(ctx, vr)
}

// VReadRow reads the pin of one row of the input table.
func (c *Controller) VReadRow(ctx context.Context, row int) error {
	vr, err := c.rules.VReadRow(row)
	if err != nil {
		return c.reject(command.VReadCmd, strconv.Itoa(row), err)
	}
	return c.sendVRead(ctx, vr)
}

func (c *Controller) sendVRead(ctx context.Context, vr command.VRead) error {
	env, err := command.NewEnvelope(command.VReadCmd, vr)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, env, "vread "+joinInts(vr.Pins))
}

// SetVerbose toggles verbose serial output.
func (c *Controller) SetVerbose(ctx context.Context, on bool) error {
	env, err := command.NewEnvelope(command.VerboseCmd, command.Verbose{Value: on})
	if err != nil {
		return err
	}
	return c.dispatch(ctx, env, "verbose "+strconv.FormatBool(on))
}

// Script submits the script textbox. Successful scripts are added to the
// script history.
func (c *Controller) Script(ctx context.Context, text string) error {
	sc, err := command.ParseScript(text)
	if err != nil {
		return c.reject(command.ScriptCmd, text, err)
	}
	env, err := command.NewEnvelope(command.ScriptCmd, sc.Raw)
	if err != nil {
		return err
	}
	return c.dispatch(ctx, env, sc.Name)
}

// LoadScript returns the text of a script history entry.
func (c *Controller) LoadScript(id uuid.UUID) (string, error) {
	e, ok := c.scripts.Find(func(e ScriptEntry) bool { return e.ID == id })
	if !ok {
		return "", ErrNotFound
	}
	return e.Text, nil
}

// GridClick moves the grid point to the clicked position and sends it when
// autosend is on.
func (c *Controller) GridClick(ctx context.Context, px, py, size float64) error {
	c.mu.Lock()
	x, y := command.ClickToCoord(px, py, size, c.grid.Resolution)
	c.grid.X, c.grid.Y = x, y
	autosend := c.grid.Autosend
	c.mu.Unlock()

	if !autosend {
		c.notify()
		return nil
	}
	return c.GridSend(ctx)
}

// SetGridPoint sets the grid point from typed coordinates.
func (c *Controller) SetGridPoint(x, y int) {
	c.mu.Lock()
	c.grid.X = clampInt(x, -command.GridExtent, command.GridExtent)
	c.grid.Y = clampInt(y, -command.GridExtent, command.GridExtent)
	c.mu.Unlock()
	c.notify()
}

// GridSend sends the vset equivalent of the current grid point.
func (c *Controller) GridSend(ctx context.Context) error {
	c.mu.Lock()
	g := c.grid
	c.mu.Unlock()

	vs := g.grid().VSet(float64(g.X), float64(g.Y), g.Settling)
	if err := c.rules.ValidateVSet(vs); err != nil {
		return c.reject(command.VSetCmd, fmt.Sprintf("grid %d %d", g.X, g.Y), err)
	}
	return c.sendVSet(ctx, vs)
}

// GridReset moves the grid point to the origin and drives the grid pins to 0.
func (c *Controller) GridReset(ctx context.Context) error {
	c.mu.Lock()
	c.grid.X, c.grid.Y = 0, 0
	g := c.grid
	c.mu.Unlock()

	vs := g.grid().Zero(g.Settling)
	if err := c.rules.ValidateVSet(vs); err != nil {
		return c.reject(command.VSetCmd, "grid reset", err)
	}
	return c.sendVSet(ctx, vs)
}

// SetGridOptions changes the grid pins, settling, resolution and autosend.
func (c *Controller) SetGridOptions(opts GridOptions) error {
	pins := []int{opts.Right, opts.Top, opts.Left, opts.Bottom}
	for _, p := range pins {
		if !containsInt(c.rules.VSetPins, p) {
			c.setFlash(command.ErrInvalidPin.Error(), FlashError)
			c.notify()
			return command.ErrInvalidPin
		}
	}
	if opts.Resolution < 1 || opts.Settling < 0 || opts.Settling > command.MaxSettling {
		c.setFlash(command.ErrInvalidValue.Error(), FlashError)
		c.notify()
		return command.ErrInvalidValue
	}

	c.mu.Lock()
	c.grid.Right, c.grid.Top, c.grid.Left, c.grid.Bottom = opts.Right, opts.Top, opts.Left, opts.Bottom
	c.grid.Settling = opts.Settling
	c.grid.Resolution = opts.Resolution
	c.grid.Autosend = opts.Autosend
	c.mu.Unlock()
	c.notify()
	return nil
}

// Replay sends a history entry again. Only the flash reflects the outcome.
func (c *Controller) Replay(ctx context.Context, id uuid.UUID) error {
	e, ok := c.commands.Find(func(e Entry) bool { return e.ID == id })
	if !ok {
		return ErrNotFound
	}
	if !e.Replayable() {
		return ErrNotReplayable
	}

	env, err := command.ParseEnvelope(e.Command)
	if err != nil {
		c.setFlash(command.ErrInvalidSyntax.Error(), FlashError)
		c.notify()
		return err
	}

	res, err := c.call(ctx, env)
	switch {
	case err != nil:
		c.setFlash(failureMessage(env.Cmd, err), FlashError)
	case res.OK:
		c.setFlash(string(env.Cmd), FlashSuccess)
	default:
		c.setFlash(res.Text(), FlashError)
	}
	c.notify()
	return err
}

// ToggleCalibration opens the calibration modal, loading its content, or
// closes it when open.
func (c *Controller) ToggleCalibration(ctx context.Context) error {
	c.mu.Lock()
	open := c.calibration.Open
	if open {
		c.calibration = Calibration{}
	}
	c.mu.Unlock()
	if open {
		c.notify()
		return nil
	}

	html, err := c.backend.CalibrationPage(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("calibration page failed")
		c.setFlash(MsgServerError, FlashError)
		c.notify()
		return err
	}
	c.mu.Lock()
	c.calibration = Calibration{Open: true, HTML: html}
	c.mu.Unlock()
	c.notify()
	return nil
}

// dispatch sends env and records the outcome in the history.
func (c *Controller) dispatch(ctx context.Context, env command.Envelope, label string) error {
	res, err := c.call(ctx, env)
	entry := Entry{
		ID:      uuid.New(),
		Cmd:     env.Cmd,
		Label:   label,
		Command: env.String(),
		At:      c.now(),
	}

	if err != nil {
		msg := failureMessage(env.Cmd, err)
		c.log.Warn().Err(err).Str("cmd", string(env.Cmd)).Msg("command failed")
		entry.Message = msg
		c.commands.Add(entry)
		c.setFlash(msg, FlashError)
		c.notify()
		return err
	}

	entry.OK = res.OK
	entry.Message = res.Text()
	c.commands.Add(entry)

	if res.OK {
		c.setFlash(label, FlashSuccess)
		if env.Cmd == command.ScriptCmd {
			c.scripts.Add(ScriptEntry{ID: uuid.New(), Name: label, Text: string(env.Input), At: entry.At})
		}
	} else {
		c.setFlash(res.Text(), FlashError)
	}
	c.log.Debug().Str("cmd", string(env.Cmd)).Bool("ok", res.OK).Msg("command done")
	c.notify()
	return nil
}

// call validates and sends env, applying side effects on the view state
// that do not depend on the history.
func (c *Controller) call(ctx context.Context, env command.Envelope) (device.Result, error) {
	switch env.Cmd {
	case command.VSetCmd:
		var vs command.VSet
		if err := env.Decode(&vs); err != nil {
			return device.Result{}, err
		}
		if err := c.rules.ValidateVSet(vs); err != nil {
			return device.Result{}, err
		}
		return c.backend.VSet(ctx, vs)

	case command.VReadCmd:
		var vr command.VRead
		if err := env.Decode(&vr); err != nil {
			return device.Result{}, err
		}
		if err := c.rules.ValidateVRead(vr); err != nil {
			return device.Result{}, err
		}
		seq := c.issue()
		res, err := c.backend.VRead(ctx, vr)
		if err == nil && res.OK {
			c.applyReadings(seq, vr.Pins, res.Readings())
		}
		return res, err

	case command.ComtestCmd:
		return c.backend.Comtest(ctx)

	case command.VerboseCmd:
		var v command.Verbose
		if err := env.Decode(&v); err != nil {
			return device.Result{}, err
		}
		res, err := c.backend.Verbose(ctx, v.Value)
		if err == nil && res.OK {
			c.mu.Lock()
			c.verbose = v.Value
			c.mu.Unlock()
		}
		return res, err

	case command.ScriptCmd:
		sc, err := command.ParseScript(string(env.Input))
		if err != nil {
			return device.Result{}, err
		}
		return c.backend.Script(ctx, sc.Raw)
	}
	return device.Result{}, command.ErrUnknownCommand
}

// applyReadings puts readings[i] in the display slot of pins[i].
func (c *Controller) applyReadings(seq uint64, pins []int, readings []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, pin := range pins {
		if i >= len(readings) {
			break
		}
		slot := c.rules.ReadSlot(pin)
		if slot < 0 {
			continue
		}
		if c.applyLocked("pin"+strconv.Itoa(slot), seq) {
			c.readings[slot] = readings[i]
		}
	}
}

// reject records a client-side validation failure. Empty input is ignored.
func (c *Controller) reject(cmd command.Name, input string, err error) error {
	if errors.Is(err, command.ErrEmpty) {
		return err
	}
	c.commands.Add(Entry{
		ID:      uuid.New(),
		Cmd:     cmd,
		Label:   strings.TrimSpace(string(cmd) + " " + strings.TrimSpace(input)),
		Message: err.Error(),
		At:      c.now(),
	})
	c.setFlash(err.Error(), FlashError)
	c.notify()
	return err
}

func failureMessage(cmd command.Name, err error) string {
	if command.IsValidation(err) {
		return err.Error()
	}
	if cmd == command.ScriptCmd {
		return MsgInvalidScript
	}
	return MsgServerError
}

func vsetLabel(vs command.VSet) string {
	return fmt.Sprintf("vset %s %s %d", joinInts(vs.Pins), joinInts(vs.Values), vs.Settling)
}

func joinInts(v []int) string {
	parts := make([]string, len(v))
	for i, n := range v {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func containsInt(set []int, v int) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
