package command

import (
	"strconv"
	"strings"
)

const (
	// MaxValue is the largest output level accepted by vset.
	MaxValue = 255
	// MaxSettling is the longest settling delay in ms the board accepts.
	MaxSettling = 65535
)

// VSet sets output levels on a group of pins, then waits Settling ms.
type VSet struct {
	Pins     []int `json:"pins"`
	Values   []int `json:"values"`
	Settling int   `json:"settling"`
}

// VRead reads input levels from a group of pins.
type VRead struct {
	Pins []int `json:"pins"`
}

// Rules holds the pin sets the board accepts.
type Rules struct {
	VSetPins  []int
	VReadPins []int
}

// DefaultRules returns the PWM outputs 3, 9, 10, 11 and analog inputs 0..3.
func DefaultRules() Rules {
	return Rules{
		VSetPins:  []int{3, 9, 10, 11},
		VReadPins: []int{0, 1, 2, 3},
	}
}

// ParseVSetBatch parses "pins, values, settling", e.g. "3 9, 100 200, 500".
func (r Rules) ParseVSetBatch(text string) (VSet, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return VSet{}, ErrEmpty
	}

	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return VSet{}, ErrInvalidExpression
	}

	pins, ok := parseInts(parts[0])
	if !ok {
		return VSet{}, ErrInvalidExpression
	}
	if !subset(pins, r.VSetPins) {
		return VSet{}, ErrInvalidPin
	}
	values, ok := parseInts(parts[1])
	if !ok {
		return VSet{}, ErrInvalidExpression
	}
	if !inRange(values) {
		return VSet{}, ErrInvalidValue
	}
	if len(values) != len(pins) {
		return VSet{}, ErrInvalidExpression
	}
	settling, ok := parseSettling(parts[2])
	if !ok {
		return VSet{}, ErrInvalidExpression
	}

	return VSet{Pins: pins, Values: values, Settling: settling}, nil
}

// VSetRow builds a single-pin vset from one row of the output table.
// Row i drives the i-th output pin.
func (r Rules) VSetRow(row int, value, settling string) (VSet, error) {
	if row < 0 || row >= len(r.VSetPins) {
		return VSet{}, ErrInvalidPin
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return VSet{}, ErrInvalidExpression
	}
	s, ok := parseSettling(settling)
	if !ok {
		return VSet{}, ErrInvalidExpression
	}
	vs := VSet{Pins: []int{r.VSetPins[row]}, Values: []int{v}, Settling: s}
	if err := r.ValidateVSet(vs); err != nil {
		return VSet{}, err
	}
	return vs, nil
}

// ValidateVSet applies the batch checks to an already structured request.
func (r Rules) ValidateVSet(vs VSet) error {
	if len(vs.Pins) == 0 {
		return ErrInvalidExpression
	}
	if !subset(vs.Pins, r.VSetPins) {
		return ErrInvalidPin
	}
	if !inRange(vs.Values) {
		return ErrInvalidValue
	}
	if len(vs.Values) != len(vs.Pins) || vs.Settling < 0 || vs.Settling > MaxSettling {
		return ErrInvalidExpression
	}
	return nil
}

// ParseVReadBatch parses a space separated pin list, e.g. "0 1 2 3".
func (r Rules) ParseVReadBatch(text string) (VRead, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return VRead{}, ErrEmpty
	}
	pins, ok := parseInts(text)
	if !ok {
		return VRead{}, ErrInvalidExpression
	}
	vr := VRead{Pins: pins}
	if err := r.ValidateVRead(vr); err != nil {
		return VRead{}, err
	}
	return vr, nil
}

// VReadRow builds a single-pin vread for row i of the input table.
func (r Rules) VReadRow(row int) (VRead, error) {
	if row < 0 || row >= len(r.VReadPins) {
		return VRead{}, ErrInvalidPin
	}
	return VRead{Pins: []int{r.VReadPins[row]}}, nil
}

// ValidateVRead checks that every pin is a readable input.
func (r Rules) ValidateVRead(vr VRead) error {
	if len(vr.Pins) == 0 {
		return ErrInvalidExpression
	}
	if !subset(vr.Pins, r.VReadPins) {
		return ErrInvalidPin
	}
	return nil
}

// ReadSlot returns the display slot of an input pin, or -1.
func (r Rules) ReadSlot(pin int) int {
	for i, p := range r.VReadPins {
		if p == pin {
			return i
		}
	}
	return -1
}

func parseInts(field string) ([]int, bool) {
	fields := strings.Fields(field)
	if len(fields) == 0 {
		return nil, false
	}
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, false
		}
		out = append(out, n)
	}
	return out, true
}

func parseSettling(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > MaxSettling {
		return 0, false
	}
	return n, true
}

func subset(pins, allowed []int) bool {
	for _, p := range pins {
		found := false
		for _, a := range allowed {
			if p == a {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func inRange(values []int) bool {
	for _, v := range values {
		if v < 0 || v > MaxValue {
			return false
		}
	}
	return true
}
