package command

import (
	"encoding/json"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// scriptSchema describes what the backend script runner accepts: an object
// naming the script in fname, every other key passed as a keyword argument.
const scriptSchema = `{
	"type": "object",
	"required": ["fname"],
	"properties": {
		"fname": {"type": "string", "minLength": 1}
	}
}`

var compiledScriptSchema = mustCompile("script.json", scriptSchema)

func mustCompile(name, schema string) *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(schema)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(name)
}

// Script is a validated script submission.
type Script struct {
	Name string
	Raw  json.RawMessage
}

// ParseScript parses the script textbox. The raw text is kept as submitted so
// the script history shows exactly what the user typed.
func ParseScript(text string) (Script, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Script{}, ErrEmpty
	}

	var v interface{}
	if err := json.Unmarshal([]byte(trimmed), &v); err != nil {
		return Script{}, ErrInvalidSyntax
	}
	if err := compiledScriptSchema.Validate(v); err != nil {
		return Script{}, ErrInvalidSyntax
	}

	obj := v.(map[string]interface{})
	return Script{Name: obj["fname"].(string), Raw: json.RawMessage(trimmed)}, nil
}
