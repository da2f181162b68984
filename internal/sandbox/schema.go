package sandbox

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// metaSchemaSrc is the §6.2 shape every analyze binary's output must
// satisfy: a "primary" field map and an "embeds" map of field maps.
// Validating it here means a misbehaving sandbox image fails the job
// cleanly instead of corrupting whatever the metadata processor does next.
const metaSchemaSrc = `{
  "type": "object",
  "required": ["primary", "embeds"],
  "properties": {
    "primary": {"type": "object"},
    "embeds": {"type": "object"},
    "signed": {"type": "boolean"}
  }
}`

var metaSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("meta.json", bytes.NewReader([]byte(metaSchemaSrc))); err != nil {
		panic("sandbox: invalid embedded meta schema: " + err.Error())
	}
	schema, err := compiler.Compile("meta.json")
	if err != nil {
		panic("sandbox: compile embedded meta schema: " + err.Error())
	}
	metaSchema = schema
}

// validateMeta checks raw analyze output against the expected shape before
// it is decoded into a RawMetadata value.
func validateMeta(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := metaSchema.Validate(v); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}
