package llm

import (
	"context"
	"encoding/json"
	"log"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"google.golang.org/genai"
)

// Classify determines the intent of a user message and extracts entities.
// It never returns an error: any provider failure, timeout, or unusable
// output yields a degraded Classification so the caller can fall back to
// open-ended generation.
func (s *Service) Classify(ctx context.Context, text string) Classification {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	prompt := classificationPrompt(text)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}
	resp, err := s.client.Models.GenerateContent(ctx, s.model, genai.Text(prompt), cfg)
	if err != nil {
		log.Printf("llm: classify: %v", err)
		return degradedClassification()
	}

	raw := responseText(resp)
	c, err := parseClassification(raw)
	if err != nil {
		log.Printf("llm: classify parse: %v (raw: %.200s)", err, raw)
		return degradedClassification()
	}
	return c
}

func degradedClassification() Classification {
	return Classification{
		Intent:   IntentUnknown,
		Entities: map[string]string{},
		Degraded: true,
	}
}

// parseClassification extracts {intent, entities} from provider output.
// The text is treated as hostile: markdown fences are stripped, malformed
// JSON is repaired before parsing, unknown intents collapse to DESCONOCIDO,
// and non-string entity values are dropped.
func parseClassification(raw string) (Classification, error) {
	cleaned := stripFences(raw)

	var payload struct {
		Intent   string                     `json:"intent"`
		Entities map[string]json.RawMessage `json:"entities"`
	}
	if err := unmarshalRepaired([]byte(cleaned), &payload); err != nil {
		return Classification{}, err
	}

	intent := strings.ToUpper(strings.TrimSpace(payload.Intent))
	if !knownIntents[intent] {
		intent = IntentUnknown
	}

	entities := make(map[string]string, len(payload.Entities))
	for k, v := range payload.Entities {
		var sv string
		if err := json.Unmarshal(v, &sv); err != nil {
			continue // non-string entity values carry no signal for us
		}
		sv = strings.TrimSpace(sv)
		if sv != "" {
			entities[k] = sv
		}
	}

	return Classification{Intent: intent, Entities: entities}, nil
}

// unmarshalRepaired unmarshals JSON, attempting a repair pass when the
// input is syntactically broken (a common failure mode for LLM output).
func unmarshalRepaired(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	fixed, rerr := jsonrepair.JSONRepair(string(data))
	if rerr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}

// stripFences removes a surrounding markdown code fence, if present.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	return strings.TrimSpace(s)
}
