// Package locale renders validation error codes into human readable messages.
package locale

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/conduit-lang/activerecord/pkg/orm/validation"
)

// Parameter names understood by the message templates
const (
	ParamField      = "field"
	ParamFieldName  = "field_name"
	ParamPermission = "permission"
	ParamValue      = "value"
)

var english = map[string]string{
	validation.CodeRequired:         "{field_name} is required",
	validation.CodeValidationFailed: "{field_name} is invalid",
	validation.CodeNotUnique:        "{field_name} has already been taken",
	validation.CodeNoPermission:     "You do not have permission to {permission} this record",
}

var french = map[string]string{
	validation.CodeRequired:         "{field_name} est obligatoire",
	validation.CodeValidationFailed: "{field_name} est invalide",
	validation.CodeNotUnique:        "{field_name} est déjà utilisé",
	validation.CodeNoPermission:     "Vous n'avez pas la permission de {permission} cet enregistrement",
}

// Catalog holds message templates per language
type Catalog struct {
	fallback language.Tag
	tags     []language.Tag
	messages map[language.Tag]map[string]string
	matcher  language.Matcher
	mu       sync.RWMutex
}

// NewCatalog creates a catalog seeded with English and French messages.
// English is the fallback.
func NewCatalog() *Catalog {
	c := &Catalog{
		fallback: language.English,
		messages: make(map[language.Tag]map[string]string),
	}
	for code, tmpl := range english {
		c.Add(language.English, code, tmpl)
	}
	for code, tmpl := range french {
		c.Add(language.French, code, tmpl)
	}
	return c
}

// Add registers a template for a code. Templates reference parameters as
// {name}.
func (c *Catalog) Add(tag language.Tag, code, template string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	msgs, ok := c.messages[tag]
	if !ok {
		msgs = make(map[string]string)
		c.messages[tag] = msgs
		c.tags = append(c.tags, tag)
		c.sortTags()
		c.matcher = language.NewMatcher(c.tags)
	}
	msgs[code] = template
}

// fallback first, the rest in a stable order
func (c *Catalog) sortTags() {
	sort.SliceStable(c.tags, func(i, j int) bool {
		if c.tags[i] == c.fallback {
			return true
		}
		if c.tags[j] == c.fallback {
			return false
		}
		return c.tags[i].String() < c.tags[j].String()
	})
}

// Languages returns the languages with registered messages
func (c *Catalog) Languages() []language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]language.Tag(nil), c.tags...)
}

// Match resolves a locale string to the closest supported language
func (c *Catalog) Match(locale string) language.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.matcher == nil {
		return c.fallback
	}
	requested, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		return c.fallback
	}
	_, index, confidence := c.matcher.Match(requested)
	if confidence == language.No {
		return c.fallback
	}
	return c.tags[index]
}

// Translate renders a code. Unknown codes render as the code itself.
func (c *Catalog) Translate(code string, params map[string]any, locale string) string {
	tag := c.Match(locale)

	c.mu.RLock()
	tmpl, ok := c.messages[tag][code]
	if !ok {
		tmpl, ok = c.messages[c.fallback][code]
	}
	c.mu.RUnlock()

	if !ok {
		return code
	}
	return render(tmpl, withLabel(params, tag))
}

// Translator adapts the catalog to the validation translator contract
func (c *Catalog) Translator() validation.Translator {
	return c.Translate
}

// Label turns a property name into a display label, e.g. "created_at" into
// "Created At"
func Label(name string, tag language.Tag) string {
	return cases.Title(tag).String(strings.ReplaceAll(name, "_", " "))
}

func withLabel(params map[string]any, tag language.Tag) map[string]any {
	if _, ok := params[ParamFieldName]; ok {
		return params
	}
	field, ok := params[ParamField].(string)
	if !ok {
		return params
	}
	out := make(map[string]any, len(params)+1)
	for k, v := range params {
		out[k] = v
	}
	out[ParamFieldName] = Label(field, tag)
	return out
}

func render(tmpl string, params map[string]any) string {
	if len(params) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
