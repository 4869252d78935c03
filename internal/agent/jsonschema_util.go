package agent

import (
	"bytes"
	"encoding/json"
	"io"
)

// jsonschemaReader adapts a raw JSON Schema document into the io.Reader
// jsonschema.Compiler.AddResource expects.
func jsonschemaReader(raw json.RawMessage) io.Reader {
	return bytes.NewReader(raw)
}
