package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Result is the single shape every backend response is adapted into.
type Result struct {
	OK      bool            `json:"ok"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// serverReply is the {success, info, data} object the backend answers with
// for serial commands.
type serverReply struct {
	Success json.RawMessage `json:"success"`
	Info    json.RawMessage `json:"info"`
	Data    json.RawMessage `json:"data"`
}

// DecodeResult adapts a backend body into a Result. Accepted shapes:
// {success, info, data}; [ok, message] pairs; plain JSON strings; any other
// JSON value (taken as successful data); and non-JSON text (taken as a
// successful message).
func DecodeResult(body []byte) Result {
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return Result{OK: true}
	}

	switch body[0] {
	case '{':
		var reply serverReply
		if err := json.Unmarshal(body, &reply); err != nil {
			return Result{OK: true, Message: string(body)}
		}
		ok, isFlag := truthy(reply.Success)
		if !isFlag {
			return Result{OK: true, Data: json.RawMessage(body)}
		}
		return Result{OK: ok, Message: infoText(reply.Info), Data: nonNull(reply.Data)}

	case '[':
		var pair []json.RawMessage
		if err := json.Unmarshal(body, &pair); err != nil {
			return Result{OK: true, Message: string(body)}
		}
		if len(pair) == 2 {
			if ok, isFlag := truthy(pair[0]); isFlag {
				var msg string
				if json.Unmarshal(pair[1], &msg) == nil {
					return Result{OK: ok, Message: msg}
				}
			}
		}
		return Result{OK: true, Data: json.RawMessage(body)}

	case '"':
		var s string
		if err := json.Unmarshal(body, &s); err == nil {
			return Result{OK: true, Message: s}
		}
	}

	if json.Valid(body) {
		return Result{OK: true, Data: json.RawMessage(body)}
	}
	return Result{OK: true, Message: string(body)}
}

// Text renders the result for a history line.
func (r Result) Text() string {
	switch {
	case r.Message != "" && len(r.Data) > 0:
		return r.Message + " " + string(r.Data)
	case r.Message != "":
		return r.Message
	case len(r.Data) > 0:
		return string(r.Data)
	case r.OK:
		return "OK"
	}
	return "Failed"
}

// Readings extracts the pin readings carried by a vread result, in request
// order. Readings come back as bare numbers, as {"data":[...]} objects, or as
// one {"data":[...], "msg":[...]} object per pin; all are flattened.
func (r Result) Readings() []string {
	if len(r.Data) == 0 {
		return nil
	}
	var out []string
	collectReadings(r.Data, &out, 0)
	return out
}

func collectReadings(raw json.RawMessage, out *[]string, depth int) {
	if depth > 4 {
		return
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return
	}
	switch raw[0] {
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return
		}
		for _, it := range items {
			collectReadings(it, out, depth+1)
		}
	case '{':
		var obj struct {
			Data json.RawMessage `json:"data"`
		}
		if json.Unmarshal(raw, &obj) == nil {
			collectReadings(obj.Data, out, depth+1)
		}
	case '"':
		var s string
		if json.Unmarshal(raw, &s) == nil {
			*out = append(*out, s)
		}
	case 'n':
	default:
		var f float64
		if json.Unmarshal(raw, &f) == nil {
			*out = append(*out, strconv.FormatFloat(f, 'f', -1, 64))
		}
	}
}

func infoText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	return string(raw)
}

func nonNull(raw json.RawMessage) json.RawMessage {
	if len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// truthy interprets a success flag, either the first element of an
// [ok, message] pair or the success field of a reply. Numbers count as success
// when non-zero, and "true"/"false" strings are accepted.
func truthy(raw json.RawMessage) (ok bool, isFlag bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return false, false
	}
	var b bool
	if json.Unmarshal(raw, &b) == nil {
		return b, true
	}
	var n float64
	if json.Unmarshal(raw, &n) == nil {
		return n != 0, true
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		switch strings.ToLower(s) {
		case "true", "1":
			return true, true
		case "false", "0":
			return false, true
		}
	}
	return false, false
}

// parseConnected interprets the /isConnected body: 1, true or "1".
func parseConnected(body []byte) (bool, error) {
	s := strings.Trim(strings.TrimSpace(string(body)), `"`)
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false", "":
		return false, nil
	}
	return false, fmt.Errorf("unexpected isConnected body %q", s)
}
