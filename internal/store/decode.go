package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mitchellh/mapstructure"
)

// decodeJSONB unmarshals a jsonb payload into a generic map, then decodes it
// into target via mapstructure — the teacher's Elasticsearch _source decode
// idiom, extended with a string->time.Time hook since jsonb round-trips
// timestamps as RFC3339 strings rather than time.Time values.
func decodeJSONB(raw []byte, target any) error {
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return fmt.Errorf("store: decode jsonb: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.StringToTimeHookFunc(time.RFC3339),
		Result:     target,
	})
	if err != nil {
		return fmt.Errorf("store: build decoder: %w", err)
	}
	if err := decoder.Decode(generic); err != nil {
		return fmt.Errorf("store: map jsonb payload: %w", err)
	}
	return nil
}
