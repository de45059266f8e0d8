package fields

import (
	"testing"

	"github.com/jStrider/grafana-publisher/internal/config"
	"github.com/jStrider/grafana-publisher/internal/domain/alert"
	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/schema"
)

func testSchemas() []schema.FieldSchema {
	return []schema.FieldSchema{
		{ID: "fld_prio", Name: "Priority", Type: schema.TypeDropdown, Options: []schema.Option{
			{ID: "opt_1", Label: "high"},
			{ID: "opt_2", Label: "medium"},
		}},
		{ID: "fld_hosp", Name: "Hospital", Type: schema.TypeLabels, Options: []schema.Option{
			{ID: "lbl_1", Label: "chu-lyon"},
		}},
		{ID: "fld_host", Name: "Hostname", Type: schema.TypeText},
		{ID: "fld_count", Name: "Occurrences", Type: schema.TypeNumber},
	}
}

func testClassified() alert.Classified {
	return alert.Classified{
		Alert: alert.Alert{
			CustomerID: "chu-lyon",
			VM:         "vm1",
			Severity:   "high",
		},
		Priority: "high",
		Fields:   map[string]string{},
	}
}

func findValue(t *testing.T, values []Value, fieldID string) Value {
	t.Helper()
	for _, v := range values {
		if v.FieldID == fieldID {
			return v
		}
	}
	t.Fatalf("no value mapped for field %s in %v", fieldID, values)
	return Value{}
}

func TestMapper_DropdownResolution(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"priority": {FieldName: "Priority", Type: schema.TypeDropdown},
	}, nil, logger.Nop())

	values, err := m.Map(testClassified(), testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got := findValue(t, values, "fld_prio"); got.Value != "opt_1" {
		t.Errorf("priority value = %v, want opt_1", got.Value)
	}
}

func TestMapper_UnknownOptionFails(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"priority": {FieldName: "Priority", Type: schema.TypeDropdown},
	}, nil, logger.Nop())

	c := testClassified()
	c.Priority = "urgent"

	_, err := m.Map(c, testSchemas())
	if err == nil {
		t.Fatal("Map() accepted an unmapped dropdown value")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeUnknownFieldOption) {
		t.Errorf("error = %v, want UNKNOWN_FIELD_OPTION", err)
	}
}

func TestMapper_MissingSchemaFieldOmitted(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"support_type": {FieldName: "Type support", Default: "Issue"},
	}, nil, logger.Nop())

	values, err := m.Map(testClassified(), testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want none for a field absent from the schema", values)
	}
}

func TestMapper_RequiredFieldMissingFails(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"support_type": {FieldName: "Type support", Default: "Issue"},
	}, []string{"support_type"}, logger.Nop())

	_, err := m.Map(testClassified(), testSchemas())
	if err == nil {
		t.Fatal("Map() did not enforce required field")
	}
	if !apperrors.IsCode(err, apperrors.ErrCodeMissingRequiredField) {
		t.Errorf("error = %v, want MISSING_REQUIRED_FIELD", err)
	}
}

func TestMapper_AliasLookup(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"priority": {FieldName: "Priorité", Aliases: []string{"Priority"}, Type: schema.TypeDropdown},
	}, nil, logger.Nop())

	values, err := m.Map(testClassified(), testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	findValue(t, values, "fld_prio")
}

func TestMapper_UseCustomerIDLabelsField(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"hospital": {FieldName: "Hospital", UseCustomerID: true},
	}, nil, logger.Nop())

	values, err := m.Map(testClassified(), testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	got := findValue(t, values, "fld_hosp")
	ids, ok := got.Value.([]string)
	if !ok || len(ids) != 1 || ids[0] != "lbl_1" {
		t.Errorf("labels field value = %v, want [lbl_1]", got.Value)
	}
}

func TestMapper_TranslationTable(t *testing.T) {
	// The rule set the semantic value "stockage"; the mapping table
	// translates it to the workspace's option label.
	schemas := []schema.FieldSchema{
		{ID: "fld_st", Name: "Type support", Type: schema.TypeDropdown, Options: []schema.Option{
			{ID: "opt_disk", Label: "Problème espace disque"},
		}},
	}
	m := NewMapper(map[string]config.FieldMapping{
		"support_type": {
			FieldName: "Type support",
			Mapping:   map[string]string{"stockage": "Problème espace disque"},
		},
	}, nil, logger.Nop())

	c := testClassified()
	c.Fields["support_type"] = "stockage"

	values, err := m.Map(c, schemas)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got := findValue(t, values, "fld_st"); got.Value != "opt_disk" {
		t.Errorf("translated value = %v, want opt_disk", got.Value)
	}
}

func TestMapper_TypeCoercion(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"vm":    {FieldName: "Hostname"},
		"count": {FieldName: "Occurrences", Default: "3"},
	}, nil, logger.Nop())

	values, err := m.Map(testClassified(), testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if got := findValue(t, values, "fld_host"); got.Value != "vm1" {
		t.Errorf("text value = %v, want vm1", got.Value)
	}
	if got := findValue(t, values, "fld_count"); got.Value != float64(3) {
		t.Errorf("number value = %v (%T), want 3.0", got.Value, got.Value)
	}
}

func TestMapper_EmptyValueSkipped(t *testing.T) {
	m := NewMapper(map[string]config.FieldMapping{
		"comment": {FieldName: "Hostname"},
	}, nil, logger.Nop())

	c := testClassified()
	c.Alert.VM = ""

	values, err := m.Map(c, testSchemas())
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if len(values) != 0 {
		t.Errorf("values = %v, want none for empty semantic value", values)
	}
}
