// Package command builds, validates and serializes the requests the panel
// sends to the serial backend.
package command

import (
	"encoding/json"
	"strings"
)

// Name identifies a backend command.
type Name string

const (
	VSetCmd    Name = "vset"
	VReadCmd   Name = "vread"
	ComtestCmd Name = "comtest"
	ScriptCmd  Name = "script"
	VerboseCmd Name = "verbose"
)

var endpoints = map[Name]string{
	VSetCmd:    "/serialVSet",
	VReadCmd:   "/serialVRead",
	ComtestCmd: "/serialComtest",
	ScriptCmd:  "/serialScript",
	VerboseCmd: "/serialVerbose",
}

// Endpoint returns the backend path serving the command, or "" if unknown.
func (n Name) Endpoint() string { return endpoints[n] }

// Valid reports whether n is a known command.
func (n Name) Valid() bool {
	_, ok := endpoints[n]
	return ok
}

// Envelope is the replayable form of a command as kept in the history list:
// {"cmd":"vset","input":{"pins":[3],"values":[10],"settling":0}}.
type Envelope struct {
	Cmd   Name            `json:"cmd"`
	Input json.RawMessage `json:"input,omitempty"`
}

// NewEnvelope wraps input, which may be nil, for the named command.
func NewEnvelope(name Name, input interface{}) (Envelope, error) {
	env := Envelope{Cmd: name}
	if input == nil {
		return env, nil
	}
	if raw, ok := input.(json.RawMessage); ok {
		env.Input = raw
		return env, nil
	}
	data, err := json.Marshal(input)
	if err != nil {
		return Envelope{}, err
	}
	env.Input = data
	return env, nil
}

// String returns the compact JSON text of the envelope.
func (e Envelope) String() string {
	data, err := json.Marshal(e)
	if err != nil {
		return ""
	}
	return string(data)
}

// ParseEnvelope parses history text back into an envelope.
func ParseEnvelope(text string) (Envelope, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Envelope{}, ErrEmpty
	}
	var env Envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return Envelope{}, ErrInvalidSyntax
	}
	if !env.Cmd.Valid() {
		return Envelope{}, ErrUnknownCommand
	}
	return env, nil
}

// Decode unmarshals the envelope input into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Input) == 0 {
		return ErrInvalidSyntax
	}
	if err := json.Unmarshal(e.Input, v); err != nil {
		return ErrInvalidSyntax
	}
	return nil
}

// Verbose is the input of the verbose command.
type Verbose struct {
	Value bool `json:"value"`
}
