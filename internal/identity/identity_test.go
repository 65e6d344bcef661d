// internal/identity/identity_test.go
package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMergeForm_DraftValueWins(t *testing.T) {
	draft := map[string]string{"firstName": "", "lastName": "Amin"}
	profile := &Profile{Name: "Amina Other", Email: "amina@example.com"}

	merged := MergeForm(draft, profile)

	assert.Equal(t, "Amina", merged["firstName"]) // back-filled from profile
	assert.Equal(t, "Amin", merged["lastName"])   // draft value kept
	assert.Equal(t, "amina@example.com", merged["email"])
}

func TestMergeForm_Deterministic(t *testing.T) {
	draft := map[string]string{"phone": "+123", "email": ""}
	profile := &Profile{Name: "Jan Kowalski", Email: "jan@example.com", Phone: "+999"}

	first := MergeForm(draft, profile)
	second := MergeForm(draft, profile)

	assert.Equal(t, first, second)
	assert.Equal(t, "+123", first["phone"])
	assert.Equal(t, "jan@example.com", first["email"])
	assert.Equal(t, "Jan", first["firstName"])
	assert.Equal(t, "Kowalski", first["lastName"])
}

func TestMergeForm_NilProfile(t *testing.T) {
	draft := map[string]string{"firstName": "Amina"}
	merged := MergeForm(draft, nil)
	assert.Equal(t, draft, merged)
}
