package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVSetBatch(t *testing.T) {
	r := DefaultRules()

	tests := []struct {
		name    string
		input   string
		want    VSet
		wantErr error
	}{
		{"two pins", "3 9, 100 200, 500", VSet{Pins: []int{3, 9}, Values: []int{100, 200}, Settling: 500}, nil},
		{"all pins", " 3 9 10 11 ,0 1 2 255,0 ", VSet{Pins: []int{3, 9, 10, 11}, Values: []int{0, 1, 2, 255}, Settling: 0}, nil},
		{"empty settling", "3, 10, ", VSet{Pins: []int{3}, Values: []int{10}, Settling: 0}, nil},
		{"length mismatch", "3 9, 100 200 50, 500", VSet{}, ErrInvalidExpression},
		{"two parts", "3 9, 100 200", VSet{}, ErrInvalidExpression},
		{"four parts", "3, 1, 2, 3", VSet{}, ErrInvalidExpression},
		{"bad pin", "3 4, 100 200, 500", VSet{}, ErrInvalidPin},
		{"non numeric pin", "a, 1, 0", VSet{}, ErrInvalidExpression},
		{"value too high", "3, 256, 0", VSet{}, ErrInvalidValue},
		{"negative value", "3, -1, 0", VSet{}, ErrInvalidValue},
		{"non numeric value", "3, x, 0", VSet{}, ErrInvalidExpression},
		{"fractional value", "3, 1.5, 0", VSet{}, ErrInvalidExpression},
		{"bad settling", "3, 1, soon", VSet{}, ErrInvalidExpression},
		{"negative settling", "3, 1, -5", VSet{}, ErrInvalidExpression},
		{"empty", "   ", VSet{}, ErrEmpty},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ParseVSetBatch(tt.input)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVSetRejectsPinsOutsideOutputs(t *testing.T) {
	r := DefaultRules()
	for pin := -2; pin <= 20; pin++ {
		_, err := r.ParseVSetBatch(fmt.Sprintf("%d, 10, 0", pin))
		switch pin {
		case 3, 9, 10, 11:
			assert.NoError(t, err, "pin %d", pin)
		default:
			assert.ErrorIs(t, err, ErrInvalidPin, "pin %d", pin)
		}
	}
}

func TestVSetRejectsValuesOutOfRange(t *testing.T) {
	r := DefaultRules()
	for _, v := range []int{-300, -1, 256, 1000} {
		err := r.ValidateVSet(VSet{Pins: []int{3, 9}, Values: []int{10, v}})
		assert.ErrorIs(t, err, ErrInvalidValue, "value %d", v)
	}
	assert.NoError(t, r.ValidateVSet(VSet{Pins: []int{3, 9}, Values: []int{0, 255}}))
}

func TestValidateVSetLengthMismatch(t *testing.T) {
	r := DefaultRules()
	err := r.ValidateVSet(VSet{Pins: []int{3, 9}, Values: []int{1}})
	assert.ErrorIs(t, err, ErrInvalidExpression)
}

func TestVSetRow(t *testing.T) {
	r := DefaultRules()

	got, err := r.VSetRow(2, "128", "50")
	require.NoError(t, err)
	assert.Equal(t, VSet{Pins: []int{10}, Values: []int{128}, Settling: 50}, got)

	_, err = r.VSetRow(4, "1", "0")
	assert.ErrorIs(t, err, ErrInvalidPin)
	_, err = r.VSetRow(0, "", "0")
	assert.ErrorIs(t, err, ErrInvalidExpression)
	_, err = r.VSetRow(0, "300", "0")
	assert.ErrorIs(t, err, ErrInvalidValue)
}

func TestParseVReadBatch(t *testing.T) {
	r := DefaultRules()

	got, err := r.ParseVReadBatch("0 1 2 3")
	require.NoError(t, err)
	assert.Equal(t, VRead{Pins: []int{0, 1, 2, 3}}, got)

	_, err = r.ParseVReadBatch("0 4")
	assert.ErrorIs(t, err, ErrInvalidPin)
	_, err = r.ParseVReadBatch("0 x")
	assert.ErrorIs(t, err, ErrInvalidExpression)
	_, err = r.ParseVReadBatch("")
	assert.ErrorIs(t, err, ErrEmpty)

	for pin := -1; pin <= 12; pin++ {
		err := r.ValidateVRead(VRead{Pins: []int{pin}})
		if pin >= 0 && pin <= 3 {
			assert.NoError(t, err, "pin %d", pin)
		} else {
			assert.ErrorIs(t, err, ErrInvalidPin, "pin %d", pin)
		}
	}
}

func TestVReadRowAndSlot(t *testing.T) {
	r := DefaultRules()
	got, err := r.VReadRow(3)
	require.NoError(t, err)
	assert.Equal(t, []int{3}, got.Pins)

	_, err = r.VReadRow(-1)
	assert.ErrorIs(t, err, ErrInvalidPin)

	assert.Equal(t, 2, r.ReadSlot(2))
	assert.Equal(t, -1, r.ReadSlot(7))
}

func TestValidationErrorText(t *testing.T) {
	assert.Equal(t, "Invalid expression", ErrInvalidExpression.Error())
	assert.Equal(t, "Invalid pin", ErrInvalidPin.Error())
	assert.Equal(t, "Invalid value", ErrInvalidValue.Error())
	assert.True(t, IsValidation(fmt.Errorf("wrap: %w", ErrInvalidPin)))
	assert.False(t, IsValidation(ErrEmpty))
	assert.False(t, IsValidation(errors.New("other")))
}

func TestEnvelope(t *testing.T) {
	env, err := NewEnvelope(VSetCmd, VSet{Pins: []int{3}, Values: []int{10}, Settling: 0})
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"vset","input":{"pins":[3],"values":[10],"settling":0}}`, env.String())

	comtest, err := NewEnvelope(ComtestCmd, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"comtest"}`, comtest.String())

	parsed, err := ParseEnvelope(env.String())
	require.NoError(t, err)
	assert.Equal(t, VSetCmd, parsed.Cmd)
	assert.Equal(t, "/serialVSet", parsed.Cmd.Endpoint())

	var vs VSet
	require.NoError(t, parsed.Decode(&vs))
	assert.Equal(t, []int{3}, vs.Pins)

	_, err = ParseEnvelope("{not json")
	assert.ErrorIs(t, err, ErrInvalidSyntax)
	_, err = ParseEnvelope(`{"cmd":"reboot"}`)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.ErrorIs(t, comtest.Decode(&vs), ErrInvalidSyntax)
}

func TestEnvelopeRawInput(t *testing.T) {
	raw := json.RawMessage(`{"fname":"script_sweep","steps":4}`)
	env, err := NewEnvelope(ScriptCmd, raw)
	require.NoError(t, err)
	assert.Equal(t, `{"cmd":"script","input":{"fname":"script_sweep","steps":4}}`, env.String())
}

func TestMagnitude(t *testing.T) {
	tests := []struct {
		coord float64
		want  int
	}{
		{0, 0},
		{100, 255},
		{-100, 255},
		{50, 128},
		{-50, 128},
		{10, 26},
		{1, 3},
		{150, 255},
		{-1000, 255},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Magnitude(tt.coord), "Magnitude(%v)", tt.coord)
	}
}

func TestGridVSet(t *testing.T) {
	g := Grid{Right: 3, Top: 9, Left: 10, Bottom: 11}

	got := g.VSet(50, -20, 100)
	assert.Equal(t, []int{3, 9, 10, 11}, got.Pins)
	assert.Equal(t, []int{128, 0, 0, 51}, got.Values)
	assert.Equal(t, 100, got.Settling)

	got = g.VSet(-100, 100, 0)
	assert.Equal(t, []int{0, 255, 255, 0}, got.Values)

	assert.Equal(t, []int{0, 0, 0, 0}, g.Zero(5).Values)
	assert.NoError(t, DefaultRules().ValidateVSet(g.VSet(-73, 12, 0)))
}

func TestGridMappingProperty(t *testing.T) {
	g := Grid{Right: 3, Top: 9, Left: 10, Bottom: 11}
	for x := -100; x <= 100; x += 7 {
		for y := -100; y <= 100; y += 11 {
			vs := g.VSet(float64(x), float64(y), 0)
			mx, my := Magnitude(float64(x)), Magnitude(float64(y))
			if x >= 0 {
				assert.Equal(t, mx, vs.Values[0])
				assert.Zero(t, vs.Values[2])
			} else {
				assert.Equal(t, mx, vs.Values[2])
				assert.Zero(t, vs.Values[0])
			}
			if y >= 0 {
				assert.Equal(t, my, vs.Values[1])
				assert.Zero(t, vs.Values[3])
			} else {
				assert.Equal(t, my, vs.Values[3])
				assert.Zero(t, vs.Values[1])
			}
		}
	}
}

func TestClickToCoord(t *testing.T) {
	tests := []struct {
		px, py, size float64
		res          int
		x, y         int
	}{
		{200, 200, 400, 1, 0, 0},
		{0, 0, 400, 1, -100, 100},
		{400, 400, 400, 1, 100, -100},
		{300, 100, 400, 1, 50, 50},
		{303, 100, 400, 10, 50, 50},
		{400, 0, 400, 30, 100, 100},
		{10, 10, 0, 1, 0, 0},
	}
	for _, tt := range tests {
		x, y := ClickToCoord(tt.px, tt.py, tt.size, tt.res)
		assert.Equal(t, tt.x, x, "x for %+v", tt)
		assert.Equal(t, tt.y, y, "y for %+v", tt)
	}
}

func TestParseScript(t *testing.T) {
	s, err := ParseScript(` {"fname":"script_rotate","turns":2} `)
	require.NoError(t, err)
	assert.Equal(t, "script_rotate", s.Name)
	assert.JSONEq(t, `{"fname":"script_rotate","turns":2}`, string(s.Raw))

	for _, bad := range []string{`{"fname":`, `[1,2]`, `{"turns":2}`, `{"fname":""}`, `{"fname":3}`, `"text"`} {
		_, err := ParseScript(bad)
		assert.ErrorIs(t, err, ErrInvalidSyntax, "input %s", bad)
	}

	_, err = ParseScript("")
	assert.ErrorIs(t, err, ErrEmpty)
}
