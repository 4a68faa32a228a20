package locale

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/text/language"

	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

func TestCatalog_TranslateEnglish(t *testing.T) {
	c := NewCatalog()

	msg := c.Translate(validation.CodeRequired, map[string]any{ParamField: "created_at"}, "en")
	assert.Equal(t, "Created At is required", msg)

	msg = c.Translate(validation.CodeNotUnique, map[string]any{ParamField: "sku", ParamFieldName: "SKU"}, "en-US")
	assert.Equal(t, "SKU has already been taken", msg)

	msg = c.Translate(validation.CodeNoPermission, map[string]any{ParamPermission: "edit"}, "en")
	assert.Equal(t, "You do not have permission to edit this record", msg)
}

func TestCatalog_MatchesRegionalVariants(t *testing.T) {
	c := NewCatalog()

	assert.Equal(t, language.French, c.Match("fr_CA"))
	assert.Equal(t, language.English, c.Match("en-GB"))
	assert.Equal(t, language.English, c.Match("not a locale"))

	msg := c.Translate(validation.CodeRequired, map[string]any{ParamField: "name"}, "fr-CA")
	assert.Equal(t, "Name est obligatoire", msg)
}

func TestCatalog_UnknownLocaleFallsBack(t *testing.T) {
	c := NewCatalog()
	msg := c.Translate(validation.CodeValidationFailed, map[string]any{ParamField: "price"}, "ja")
	assert.Equal(t, "Price is invalid", msg)
}

func TestCatalog_UnknownCode(t *testing.T) {
	c := NewCatalog()
	assert.Equal(t, "made_up", c.Translate("made_up", nil, "en"))
}

func TestCatalog_Add(t *testing.T) {
	c := NewCatalog()
	c.Add(language.German, validation.CodeRequired, "{field_name} ist erforderlich")

	assert.Len(t, c.Languages(), 3)
	assert.Equal(t, language.English, c.Languages()[0])

	msg := c.Translate(validation.CodeRequired, map[string]any{ParamField: "name"}, "de")
	assert.Equal(t, "Name ist erforderlich", msg)

	// missing German template falls back to English
	msg = c.Translate(validation.CodeNotUnique, map[string]any{ParamField: "sku"}, "de")
	assert.Equal(t, "Sku has already been taken", msg)
}

func TestCatalog_TranslatorPlugsIntoErrors(t *testing.T) {
	c := NewCatalog()
	errs := validation.NewErrors()
	errs.SetTranslator(c.Translator(), "en")
	errs.Add("name", validation.CodeRequired, map[string]any{ParamField: "name"})

	assert.Equal(t, []string{"Name is required"}, errs.Get("name"))
}
