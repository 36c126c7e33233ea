package format

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/tokenforge/internal/selector"
	"git.home.luguber.info/inful/tokenforge/internal/token"
)

// Built-in formatter names.
const (
	FormatterCSSVariables = "css/variables"
	FormatterJSONFlat     = "json/flat"
)

const kebabTransform = "name/kebab"

func builtinDefinitions() []*Definition {
	return []*Definition{
		{
			Name:     FormatterCSSVariables,
			Selector: selector.Selector{Transforms: []string{kebabTransform}},
			Handler:  cssVariablesHandler,
		},
		{
			Name:    FormatterJSONFlat,
			Handler: jsonFlatHandler,
		},
	}
}

// RegisterBuiltins adds the built-in formatters to the registry.
func RegisterBuiltins(r *Registry) error {
	for _, def := range builtinDefinitions() {
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// RegisterNamed registers the built-in formatters with the given names.
// An unknown name fails immediately.
func RegisterNamed(r *Registry, names []string) error {
	byName := make(map[string]*Definition)
	for _, def := range builtinDefinitions() {
		byName[def.Name] = def
	}
	for _, name := range names {
		def, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown formatter %q", name)
		}
		if err := r.Register(def); err != nil {
			return err
		}
	}
	return nil
}

// cssVariablesHandler renders one :root block of custom properties. Tokens
// arrive sorted by pointer, so output is stable across runs.
func cssVariablesHandler(_ context.Context, fc *Context) ([]token.FileArtifact, error) {
	var b strings.Builder
	b.WriteString(":root {\n")
	for _, t := range fc.Tokens {
		name, _ := t.Transforms[kebabTransform].(string)
		if name == "" {
			continue
		}
		fmt.Fprintf(&b, "  --%s: %s;\n", name, fmt.Sprint(t.Value))
	}
	b.WriteString("}\n")

	return []token.FileArtifact{{
		Path:     "tokens.css",
		Contents: []byte(b.String()),
		Encoding: token.EncodingUTF8,
	}}, nil
}

// jsonFlatHandler emits a flat pointer -> value document.
func jsonFlatHandler(_ context.Context, fc *Context) ([]token.FileArtifact, error) {
	flat := make(map[string]any, len(fc.Tokens))
	for _, t := range fc.Tokens {
		flat[string(t.Pointer)] = t.Value
	}
	data, err := json.MarshalIndent(flat, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize flat token document: %w", err)
	}
	data = append(data, '\n')

	return []token.FileArtifact{{
		Path:     "tokens.json",
		Contents: data,
		Encoding: token.EncodingUTF8,
	}}, nil
}
