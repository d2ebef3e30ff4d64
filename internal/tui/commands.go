package tui

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"github.com/eltechnic0/arduino-control/internal/panel"
)

// Panel is the part of the panel controller the terminal UI drives.
type Panel interface {
	View() panel.View
	Refresh(ctx context.Context) error
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	Comtest(ctx context.Context) error
	VSetBatch(ctx context.Context, text string) error
	VReadBatch(ctx context.Context, text string) error
	SetVerbose(ctx context.Context, on bool) error
	Script(ctx context.Context, text string) error
	SetGridPoint(x, y int)
	GridSend(ctx context.Context) error
	GridReset(ctx context.Context) error
	Replay(ctx context.Context, id uuid.UUID) error
	ToggleCalibration(ctx context.Context) error
}

// ErrUnknownInput is returned for a line that names no command.
var ErrUnknownInput = errors.New("unknown command, type help")

// Command is one parsed input line.
type Command struct {
	Name string
	Args string
}

// commandHelp lists the typed commands in display order.
var commandHelp = [][2]string{
	{"connect | reconnect | disconnect", "manage the serial connection"},
	{"refresh", "fetch the connection state"},
	{"comtest", "run the communication test"},
	{"vset PINS, VALUES, SETTLING", "e.g. vset 3 9, 100 200, 500"},
	{"vread PINS", "e.g. vread 0 1 2 3"},
	{"verbose on|off", "toggle verbose serial output"},
	{"script JSON", `e.g. script {"fname": "script_test"}`},
	{"grid X Y", "send the grid point, -100..100 per axis"},
	{"reset", "drive the grid pins to 0"},
	{"replay N", "send history line N again (1 is newest)"},
	{"calibration", "open or close the calibration page"},
	{"help | quit", ""},
}

// ParseCommand splits a line into its command name and the raw rest.
func ParseCommand(line string) (Command, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return Command{}, ErrUnknownInput
	}
	name, args, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	switch name {
	case "connect", "reconnect", "disconnect", "refresh", "comtest",
		"vset", "vread", "verbose", "script", "grid", "reset", "replay",
		"calibration", "help", "quit", "exit":
		return Command{Name: name, Args: strings.TrimSpace(args)}, nil
	}
	return Command{}, fmt.Errorf("%w: %s", ErrUnknownInput, name)
}

// Run executes c against p.
func Run(ctx context.Context, p Panel, c Command) error {
	switch c.Name {
	case "connect":
		return p.Connect(ctx)
	case "reconnect":
		return p.Reconnect(ctx)
	case "disconnect":
		return p.Disconnect(ctx)
	case "refresh":
		return p.Refresh(ctx)
	case "comtest":
		return p.Comtest(ctx)
	case "vset":
		return p.VSetBatch(ctx, c.Args)
	case "vread":
		return p.VReadBatch(ctx, c.Args)
	case "verbose":
		on, err := parseSwitch(c.Args)
		if err != nil {
			return err
		}
		return p.SetVerbose(ctx, on)
	case "script":
		return p.Script(ctx, c.Args)
	case "grid":
		fields := strings.Fields(c.Args)
		if len(fields) != 2 {
			return errors.New("usage: grid X Y")
		}
		x, errX := strconv.Atoi(fields[0])
		y, errY := strconv.Atoi(fields[1])
		if errX != nil || errY != nil {
			return errors.New("usage: grid X Y")
		}
		p.SetGridPoint(x, y)
		return p.GridSend(ctx)
	case "reset":
		return p.GridReset(ctx)
	case "replay":
		n, err := strconv.Atoi(c.Args)
		history := p.View().History
		if err != nil || n < 1 || n > len(history) {
			return fmt.Errorf("usage: replay N, 1..%d", len(history))
		}
		return p.Replay(ctx, history[n-1].ID)
	case "calibration":
		return p.ToggleCalibration(ctx)
	}
	return ErrUnknownInput
}

func parseSwitch(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "1":
		return true, nil
	case "off", "false", "0":
		return false, nil
	}
	return false, errors.New("usage: verbose on|off")
}

// runCmd runs c in the background and reports completion.
func runCmd(ctx context.Context, p Panel, c Command, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ActionDoneMsg{Command: c, Err: Run(ctx, p, c)}
	}
}

// flashCmd fires a FlashExpiredMsg for generation gen after d.
func flashCmd(d time.Duration, gen uint64) tea.Cmd {
	if d <= 0 {
		d = 2 * time.Second
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return FlashExpiredMsg{Gen: gen}
	})
}
