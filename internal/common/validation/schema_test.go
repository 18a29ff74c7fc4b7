// internal/common/validation/schema_test.go
package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
	"type": "object",
	"properties": {
		"price": {"type": "string"},
		"area": {"type": "number", "minimum": 0}
	},
	"required": ["price"]
}`

func TestSchemaValidate(t *testing.T) {
	schema := MustCompile(testSchema)

	tests := []struct {
		name      string
		doc       map[string]interface{}
		wantValid bool
		badField  string
	}{
		{name: "valid", doc: map[string]interface{}{"price": "$100", "area": 40.0}, wantValid: true},
		{name: "missing required", doc: map[string]interface{}{"area": 40.0}, badField: "(root)"},
		{name: "wrong type", doc: map[string]interface{}{"price": 100.0}, badField: "price"},
		{name: "below minimum", doc: map[string]interface{}{"price": "1", "area": -1.0}, badField: "area"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := schema.Validate(tt.doc)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, result.Valid)
			if tt.badField != "" {
				assert.True(t, result.HasErrors(tt.badField), "errors: %v", result.GetErrorMessages())
			}
		})
	}
}

func TestCompileInvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
}

func TestValidateEmail(t *testing.T) {
	assert.True(t, ValidateEmail("ana@example.com"))
	assert.False(t, ValidateEmail("ana@"))
	assert.False(t, ValidateEmail(""))
}

func TestValidateURL(t *testing.T) {
	assert.True(t, ValidateURL("https://listings.example.com/flat/12"))
	assert.True(t, ValidateURL(" http://example.com "))
	assert.False(t, ValidateURL("ftp://example.com/file"))
	assert.False(t, ValidateURL("not a url"))
	assert.False(t, ValidateURL("https://"))
}
