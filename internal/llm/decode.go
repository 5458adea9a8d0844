package llm

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/medorders/internal/common"
)

// DecodeResponse parses raw model output into a JSON object of the order shape.
// Non-JSON text and JSON of the wrong shape both fail with MalformedModelOutput
// carrying a bounded excerpt of raw.
func DecodeResponse(raw string, logger *slog.Logger) (map[string]any, error) {
	if logger == nil {
		logger = slog.Default()
	}
	body := stripFences(strings.TrimSpace(raw))

	var v any
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		logger.Error("llm.decode.invalid_json", "error", err, "raw_bytes", len(raw))
		return nil, common.MalformedModelOutput(err.Error(), raw, err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		logger.Error("llm.decode.not_object", "raw_bytes", len(raw))
		return nil, common.MalformedModelOutput("expected a JSON object", raw, nil)
	}

	NormalizeAndSanitize(m, logger)

	schema, err := compiledOrderSchema()
	if err != nil {
		return nil, err
	}
	if err := schema.Validate(m); err != nil {
		logger.Error("llm.decode.schema_validation_failed", "error", err)
		return nil, common.MalformedModelOutput("JSON does not match the required shape", raw, err)
	}
	return m, nil
}

// stripFences removes a surrounding ```json ... ``` block if the model added one.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
