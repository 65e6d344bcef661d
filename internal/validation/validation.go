// Package validation checks the three form sections before submission.
// Drafts are allowed to be incomplete; validation gates only the submit step.
package validation

import (
	"fmt"
	"sort"

	"github.com/xeipuuv/gojsonschema"
)

// Section names, also the grouping keys of the aggregated error list.
const (
	SectionPersonal   = "personal"
	SectionProgram    = "program"
	SectionAdditional = "additional"
)

// FieldError points at one field with an actionable message.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e FieldError) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// sectionSchemas holds one JSON schema per form section. Loaded via
// gojsonschema Go loaders so the schemas live next to the code.
var sectionSchemas = map[string]map[string]interface{}{
	SectionPersonal: {
		"type":     "object",
		"required": []interface{}{"firstName", "lastName", "email", "phone"},
		"properties": map[string]interface{}{
			"firstName": map[string]interface{}{"type": "string", "minLength": 1},
			"lastName":  map[string]interface{}{"type": "string", "minLength": 1},
			"email": map[string]interface{}{
				"type":    "string",
				"pattern": `^[^@\s]+@[^@\s]+\.[^@\s]+$`,
			},
			"phone": map[string]interface{}{
				"type":    "string",
				"pattern": `^\+?[0-9\s\-()]{7,20}$`,
			},
			"dateOfBirth": map[string]interface{}{"type": "string"},
			"nationality": map[string]interface{}{"type": "string"},
		},
	},
	SectionProgram: {
		"type":     "object",
		"required": []interface{}{"program", "intake", "studyCountry"},
		"properties": map[string]interface{}{
			"program":      map[string]interface{}{"type": "string", "minLength": 1},
			"intake":       map[string]interface{}{"type": "string", "minLength": 1},
			"studyCountry": map[string]interface{}{"type": "string", "minLength": 1},
		},
	},
	SectionAdditional: {
		"type":     "object",
		"required": []interface{}{"highestQualification"},
		"properties": map[string]interface{}{
			"highestQualification": map[string]interface{}{"type": "string", "minLength": 1},
			"graduationYear": map[string]interface{}{
				"type":    "string",
				"pattern": `^[0-9]{4}$`,
			},
			"notes": map[string]interface{}{"type": "string"},
		},
	},
}

// sectionFields routes form fields to the section that owns them, so each
// schema only sees its own slice of the snapshot.
var sectionFields = map[string][]string{
	SectionPersonal:   {"firstName", "lastName", "email", "phone", "dateOfBirth", "nationality"},
	SectionProgram:    {"program", "intake", "studyCountry"},
	SectionAdditional: {"highestQualification", "graduationYear", "notes"},
}

// friendlyMessages override gojsonschema's phrasing where a more actionable
// hint exists.
var friendlyMessages = map[string]string{
	"firstName":            "enter your first name",
	"lastName":             "enter your last name",
	"email":                "enter a valid email address",
	"phone":                "enter a valid phone number",
	"program":              "choose a program",
	"intake":               "choose an intake",
	"studyCountry":         "choose a study country",
	"highestQualification": "enter your highest qualification",
	"graduationYear":       "enter a 4-digit graduation year",
}

// ValidateSection runs one section's schema over the form snapshot.
func ValidateSection(section string, form map[string]string) ([]FieldError, error) {
	schema, ok := sectionSchemas[section]
	if !ok {
		return nil, fmt.Errorf("unknown section %q", section)
	}

	doc := make(map[string]interface{})
	for _, field := range sectionFields[section] {
		// Empty strings count as missing so "required" catches them.
		if v, ok := form[field]; ok && v != "" {
			doc[field] = v
		}
	}

	schemaLoader := gojsonschema.NewGoLoader(schema)
	documentLoader := gojsonschema.NewGoLoader(doc)

	result, err := gojsonschema.Validate(schemaLoader, documentLoader)
	if err != nil {
		return nil, fmt.Errorf("validate section %s: %w", section, err)
	}
	if result.Valid() {
		return nil, nil
	}

	errs := make([]FieldError, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		field := desc.Field()
		if field == "(root)" {
			if prop, ok := desc.Details()["property"].(string); ok {
				field = prop
			}
		}
		msg := desc.Description()
		if friendly, ok := friendlyMessages[field]; ok {
			msg = friendly
		}
		errs = append(errs, FieldError{Field: field, Message: msg})
	}
	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs, nil
}

// ValidateAll validates every section and groups failures by section name.
// An empty map means the form is ready to submit.
func ValidateAll(form map[string]string) (map[string][]FieldError, error) {
	all := make(map[string][]FieldError)
	for _, section := range []string{SectionPersonal, SectionProgram, SectionAdditional} {
		errs, err := ValidateSection(section, form)
		if err != nil {
			return nil, err
		}
		if len(errs) > 0 {
			all[section] = errs
		}
	}
	return all, nil
}
