/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package processor

import (
	"bytes"
	"fmt"
	"go/format"
	"io"
	"regexp"
	"sort"
	"text/template"

	"gopkg.in/yaml.v3"
)

const (
	extIndexMap    = "x-dynamodb-indexmap"
	extStorageName = "x-storage-name"
)

var (
	identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	macroPattern = regexp.MustCompile(`{([^}]+)}`)
)

// Mapping is the storage registration of one schema.
type Mapping struct {
	// TypeName is the schema name, which must match the Go type.
	TypeName    string
	StorageName string
	IndexMap    map[string]string
	// Properties are the declared property names, used to check macros.
	Properties []string
}

// Keys returns the index map keys sorted with PK and SK first.
func (m Mapping) Keys() []string {
	keys := make([]string, 0, len(m.IndexMap))
	for k := range m.IndexMap {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := keyRank(keys[i]), keyRank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})
	return keys
}

func keyRank(k string) int {
	switch k {
	case "PK":
		return 0
	case "SK":
		return 1
	}
	return 2
}

type document struct {
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type        string            `yaml:"type"`
	IndexMap    map[string]string `yaml:"x-dynamodb-indexmap"`
	StorageName string            `yaml:"x-storage-name"`
	Properties  map[string]any    `yaml:"properties"`
}

// Parse reads an OpenAPI document and returns the mappings of every schema
// carrying a storage extension, sorted by type name.
func Parse(r io.Reader) ([]Mapping, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse OpenAPI document: %w", err)
	}

	var mappings []Mapping
	for name, s := range doc.Components.Schemas {
		if len(s.IndexMap) == 0 && s.StorageName == "" {
			continue
		}
		m := Mapping{
			TypeName:    name,
			StorageName: s.StorageName,
			IndexMap:    s.IndexMap,
		}
		for p := range s.Properties {
			m.Properties = append(m.Properties, p)
		}
		sort.Strings(m.Properties)
		if err := m.validate(); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	sort.Slice(mappings, func(i, j int) bool { return mappings[i].TypeName < mappings[j].TypeName })
	return mappings, nil
}

func (m Mapping) validate() error {
	if !identPattern.MatchString(m.TypeName) {
		return fmt.Errorf("schema %q is not a valid Go type name", m.TypeName)
	}
	if len(m.IndexMap) == 0 {
		return nil
	}
	for _, k := range []string{"PK", "SK"} {
		if m.IndexMap[k] == "" {
			return fmt.Errorf("schema %s: %s requires a %s template", m.TypeName, extIndexMap, k)
		}
	}
	known := make(map[string]bool, len(m.Properties))
	for _, p := range m.Properties {
		known[p] = true
	}
	for k, tmpl := range m.IndexMap {
		for _, match := range macroPattern.FindAllStringSubmatch(tmpl, -1) {
			if len(known) > 0 && !known[match[1]] {
				return fmt.Errorf("schema %s: %s template %q references unknown property %q", m.TypeName, k, tmpl, match[1])
			}
		}
	}
	return nil
}

var registrationTemplate = template.Must(template.New("registration").Parse(`// Code generated by indexmap; DO NOT EDIT.

package {{.Package}}

import "github.com/suparena/reactiverepo/registry"

func init() {
{{- range .Mappings}}
{{- $m := .}}
{{- if .StorageName}}
	registry.RegisterStorageName[{{.TypeName}}]({{printf "%q" .StorageName}})
{{- end}}
{{- if .IndexMap}}
	registry.RegisterIndexMap[{{.TypeName}}](map[string]string{
{{- range .Keys}}
		{{printf "%q" .}}: {{printf "%q" (index $m.IndexMap .)}},
{{- end}}
	})
{{- end}}
{{- end}}
}
`))

// Generate writes the gofmt-ed Go source registering mappings in package pkg.
func Generate(w io.Writer, pkg string, mappings []Mapping) error {
	if !identPattern.MatchString(pkg) {
		return fmt.Errorf("%q is not a valid package name", pkg)
	}
	var buf bytes.Buffer
	err := registrationTemplate.Execute(&buf, struct {
		Package  string
		Mappings []Mapping
	}{pkg, mappings})
	if err != nil {
		return fmt.Errorf("failed to render registrations: %w", err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return fmt.Errorf("generated code does not parse: %w", err)
	}
	_, err = w.Write(src)
	return err
}
