// internal/validation/validation_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeForm() map[string]string {
	return map[string]string{
		"firstName":            "Amina",
		"lastName":             "Amin",
		"email":                "amina@example.com",
		"phone":                "+49 151 1234567",
		"program":              "MSc Computer Science",
		"intake":               "2027-winter",
		"studyCountry":         "Germany",
		"highestQualification": "BSc",
		"graduationYear":       "2025",
	}
}

func TestValidateAll_CompleteForm(t *testing.T) {
	errs, err := ValidateAll(completeForm())
	require.NoError(t, err)
	assert.Empty(t, errs)
}

func TestValidateAll_GroupsErrorsBySection(t *testing.T) {
	form := completeForm()
	delete(form, "email")
	form["program"] = ""
	form["graduationYear"] = "20xx"

	errs, err := ValidateAll(form)
	require.NoError(t, err)

	require.Contains(t, errs, SectionPersonal)
	require.Contains(t, errs, SectionProgram)
	require.Contains(t, errs, SectionAdditional)

	assert.Equal(t, "email", errs[SectionPersonal][0].Field)
	assert.Equal(t, "enter a valid email address", errs[SectionPersonal][0].Message)
	assert.Equal(t, "program", errs[SectionProgram][0].Field)
	assert.Equal(t, "graduationYear", errs[SectionAdditional][0].Field)
}

func TestValidateSection_Personal(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(map[string]string)
		wantField string
	}{
		{
			name:      "missing first name",
			mutate:    func(f map[string]string) { f["firstName"] = "" },
			wantField: "firstName",
		},
		{
			name:      "malformed email",
			mutate:    func(f map[string]string) { f["email"] = "not-an-email" },
			wantField: "email",
		},
		{
			name:      "malformed phone",
			mutate:    func(f map[string]string) { f["phone"] = "abc" },
			wantField: "phone",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := completeForm()
			tt.mutate(form)

			errs, err := ValidateSection(SectionPersonal, form)
			require.NoError(t, err)
			require.Len(t, errs, 1)
			assert.Equal(t, tt.wantField, errs[0].Field)
		})
	}
}

func TestValidateSection_UnknownSection(t *testing.T) {
	_, err := ValidateSection("references", completeForm())
	assert.Error(t, err)
}

func TestValidateSection_OptionalFieldsMayBeEmpty(t *testing.T) {
	form := completeForm()
	delete(form, "graduationYear")
	delete(form, "notes")

	errs, err := ValidateSection(SectionAdditional, form)
	require.NoError(t, err)
	assert.Empty(t, errs)
}
