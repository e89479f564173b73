package ai

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// schemaMap refleja el JSON Schema de v sin referencias ni propiedades adicionales,
// como lo exige la salida estructurada estricta.
func schemaMap(v any) (map[string]any, error) {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	raw, err := json.Marshal(reflector.Reflect(v))
	if err != nil {
		return nil, fmt.Errorf("AI: serializar schema: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("AI: schema a map: %w", err)
	}
	// $schema y $id no son aceptados por la API en modo estricto.
	delete(out, "$schema")
	delete(out, "$id")
	return out, nil
}
