package fields

import (
	"strconv"
	"strings"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

// Value is one resolved native custom field assignment
type Value struct {
	FieldID string      `json:"id"`
	Value   interface{} `json:"value"`
}

// Mapper translates a classified alert's semantic attributes into the
// ticketing system's native field identifiers using discovered schemas.
type Mapper struct {
	mappings map[string]config.FieldMapping
	required map[string]bool
	logger   *logger.Logger
}

// NewMapper builds a mapper from the publisher's field mapping configuration
func NewMapper(mappings map[string]config.FieldMapping, required []string, log *logger.Logger) *Mapper {
	req := make(map[string]bool, len(required))
	for _, name := range required {
		req[name] = true
	}
	return &Mapper{mappings: mappings, required: req, logger: log}
}

// Map resolves every configured field mapping against the schema set.
// A field missing from the schema is omitted (the workspace does not track
// that attribute) unless it is required. An unresolvable dropdown value is an
// error: the alert must be reported as failed, not published half-mapped.
func (m *Mapper) Map(c alert.Classified, schemas []schema.FieldSchema) ([]Value, error) {
	values := make([]Value, 0, len(m.mappings))

	for key, mapping := range m.mappings {
		fs, found := lookupField(schemas, mapping)
		if !found {
			if m.required[key] {
				return nil, apperrors.MissingRequiredField(mapping.FieldName).
					WithStage(apperrors.StageMapFields)
			}
			m.logger.With("field", mapping.FieldName).
				Debug("field not present in workspace schema, skipping")
			continue
		}

		raw := m.semanticValue(key, mapping, c)
		if raw == "" {
			if m.required[key] {
				return nil, apperrors.MissingRequiredField(mapping.FieldName).
					WithStage(apperrors.StageMapFields)
			}
			continue
		}

		mapped, err := coerceValue(raw, fs)
		if err != nil {
			return nil, err
		}
		if mapped == nil {
			if m.required[key] {
				return nil, apperrors.MissingRequiredField(mapping.FieldName).
					WithStage(apperrors.StageMapFields)
			}
			continue
		}

		values = append(values, Value{FieldID: fs.ID, Value: mapped})
	}

	return values, nil
}

// semanticValue determines the raw value for a semantic field key, before
// any option/type resolution: the rule's extra fields first, then built-in
// alert attributes, then the mapping's translation table and default.
func (m *Mapper) semanticValue(key string, mapping config.FieldMapping, c alert.Classified) string {
	raw := c.Fields[key]
	if raw == "" {
		switch key {
		case "priority":
			raw = c.Priority
		case "severity":
			raw = c.Alert.Severity
		case "customer_id":
			raw = c.Alert.CustomerID
		case "vm":
			raw = c.Alert.VM
		case "source":
			raw = c.Alert.Source
		}
	}
	if raw == "" && mapping.UseCustomerID {
		raw = c.Alert.CustomerID
	}

	if translated, ok := mapping.Mapping[strings.ToLower(raw)]; ok {
		return translated
	}
	if raw == "" {
		return mapping.Default
	}
	return raw
}

// lookupField finds the schema entry for a mapping by name or alias,
// case-insensitive, exact match before partial match. Field names vary per
// workspace, which is what the alias list is for.
func lookupField(schemas []schema.FieldSchema, mapping config.FieldMapping) (schema.FieldSchema, bool) {
	names := append([]string{mapping.FieldName}, mapping.Aliases...)

	for _, name := range names {
		want := strings.ToLower(name)
		for _, fs := range schemas {
			if strings.ToLower(fs.Name) == want {
				return fs, true
			}
		}
	}
	for _, name := range names {
		want := strings.ToLower(name)
		for _, fs := range schemas {
			if strings.Contains(strings.ToLower(fs.Name), want) {
				return fs, true
			}
		}
	}
	return schema.FieldSchema{}, false
}

// coerceValue maps a raw string to the native representation for the field
// type. Unknown types pass the value through unchanged.
func coerceValue(raw string, fs schema.FieldSchema) (interface{}, error) {
	switch fs.Type {
	case schema.TypeDropdown:
		id, ok := resolveOption(raw, fs.Options)
		if !ok {
			return nil, apperrors.UnknownFieldOption(fs.Name, raw).
				WithStage(apperrors.StageMapFields)
		}
		return id, nil

	case schema.TypeLabels:
		id, ok := resolveOption(raw, fs.Options)
		if !ok {
			return nil, apperrors.UnknownFieldOption(fs.Name, raw).
				WithStage(apperrors.StageMapFields)
		}
		// Labels fields take an array of option ids.
		return []string{id}, nil

	case schema.TypeNumber:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, nil
		}
		return n, nil

	case schema.TypeCheckbox:
		switch strings.ToLower(raw) {
		case "true", "yes", "1", "on":
			return true, nil
		default:
			return false, nil
		}

	case schema.TypeText, schema.TypeShort:
		return raw, nil

	default:
		return raw, nil
	}
}

// resolveOption finds an option id by label: exact case-insensitive match
// first, then partial.
func resolveOption(value string, options []schema.Option) (string, bool) {
	want := strings.ToLower(value)

	for _, opt := range options {
		if strings.ToLower(opt.Label) == want {
			return opt.ID, true
		}
	}
	for _, opt := range options {
		if strings.Contains(strings.ToLower(opt.Label), want) {
			return opt.ID, true
		}
	}
	return "", false
}
