package normalize

import (
	"strings"

	"github.com/akash-ramasani/job-watch/internal/domain"
)

// RawMetadataEntry is one upstream metadata[{name,value,value_type}] item
// as decoded from the Greenhouse/Ashby JSON payload before normalization.
type RawMetadataEntry struct {
	Name      string
	Value     any
	ValueType string
}

// Metadata maps the upstream metadata list into an ordered list plus a
// name->value map, trimming strings, preserving {unit,amount} shape for
// currency, and dropping empty entries. On duplicate names, the first wins.
func Metadata(raw []RawMetadataEntry) ([]domain.MetadataEntry, map[string]domain.MetadataValue) {
	var list []domain.MetadataEntry
	byName := make(map[string]domain.MetadataValue)

	for _, entry := range raw {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			continue
		}
		if _, dup := byName[name]; dup {
			continue
		}
		value, empty := toMetadataValue(entry)
		if empty {
			continue
		}
		byName[name] = value
		list = append(list, domain.MetadataEntry{Name: name, Value: value})
	}
	return list, byName
}

func toMetadataValue(entry RawMetadataEntry) (domain.MetadataValue, bool) {
	switch entry.ValueType {
	case "currency":
		if m, ok := entry.Value.(map[string]any); ok {
			unit, _ := m["unit"].(string)
			amount, _ := m["amount"].(float64)
			if unit == "" && amount == 0 {
				return domain.MetadataValue{}, true
			}
			return domain.MetadataValue{Amount: &domain.Amount{Unit: unit, Amount: amount}}, false
		}
	case "multi_select", "list":
		if items, ok := entry.Value.([]any); ok {
			var list []string
			for _, item := range items {
				if s, ok := item.(string); ok {
					s = strings.TrimSpace(s)
					if s != "" {
						list = append(list, s)
					}
				}
			}
			if len(list) == 0 {
				return domain.MetadataValue{}, true
			}
			return domain.MetadataValue{List: list}, false
		}
	}

	switch v := entry.Value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return domain.MetadataValue{}, true
		}
		return domain.MetadataValue{String: &trimmed}, false
	case float64:
		n := v
		return domain.MetadataValue{Number: &n}, false
	default:
		return domain.MetadataValue{}, true
	}
}
