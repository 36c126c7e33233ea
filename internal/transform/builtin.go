package transform

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Built-in transform names.
const (
	TransformNameKebab    = "name/kebab"
	TransformNameCamel    = "name/camel"
	TransformNameConstant = "name/constant"
	TransformValueString  = "value/string"
)

func builtinDefinitions() []*Definition {
	return []*Definition{
		{Name: TransformNameKebab, Group: "name", Handler: nameHandler(kebabName)},
		{Name: TransformNameCamel, Group: "name", Handler: nameHandler(camelName)},
		{Name: TransformNameConstant, Group: "name", Handler: nameHandler(constantName)},
		{Name: TransformValueString, Group: "value", Handler: stringValueHandler},
	}
}

// RegisterBuiltins adds the built-in transforms to the registry.
func RegisterBuiltins(r *Registry) error {
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterNamed registers the built-in transforms with the given names.
// An unknown name fails immediately.
func RegisterNamed(r *Registry, names []string) error {
	byName := make(map[string]*Definition)
	for _, def := range builtinDefinitions() {
		byName[def.Name] = def
	}
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown transform %q", name)
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// nameHandler builds a handler that derives a name from pointer segments.
func nameHandler(derive func(segments []string) string) Handler {
	return func(_ context.Context, tc *Context) (map[token.Pointer]any, error) {
		outputs := make(map[token.Pointer]any, len(tc.Tokens))
		for i := range tc.Tokens {
			p := tc.Tokens[i].Pointer
			outputs[p] = derive(pointerSegments(p))
		}
		return outputs, nil
	}
}

func stringValueHandler(_ context.Context, tc *Context) (map[token.Pointer]any, error) {
	outputs := make(map[token.Pointer]any, len(tc.Tokens))
	for i := range tc.Tokens {
		snap := &tc.Tokens[i]
		value := snap.Resolution.ResolvedValue
		if value == nil {
			value = snap.Value
		}
		outputs[snap.Pointer] = fmt.Sprint(value)
	}
	return outputs, nil
}

func pointerSegments(p token.Pointer) []string {
	raw := strings.Split(strings.Trim(string(p), "/"), "/")
	segments := raw[:0]
	for _, s := range raw {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func kebabName(segments []string) string {
	return strings.ToLower(strings.Join(segments, "-"))
}

func camelName(segments []string) string {
	if len(segments) == 0 {
		return ""
	}
	title := cases.Title(language.Und, cases.NoLower)
	var b strings.Builder
	b.WriteString(strings.ToLower(segments[0]))
	for _, s := range segments[1:] {
		b.WriteString(title.String(strings.ToLower(s)))
	}
	return b.String()
}

func constantName(segments []string) string {
	return strings.ToUpper(strings.Join(segments, "_"))
}
