package load

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SchemaSelection names the tables requested from one schema.
type SchemaSelection struct {
	Schema string
	Tables []string
}

// Selection is the ordered list of requested schemas. Generation output
// follows this order regardless of introspection completion order.
type Selection []SchemaSelection

// Len returns the total number of requested tables.
func (s Selection) Len() int {
	n := 0
	for _, ss := range s {
		n += len(ss.Tables)
	}
	return n
}

// ParseSelection decodes a selection document, a JSON (or YAML) object
// mapping schema names to lists of table names:
//
//	{"public": ["person", "post"], "billing": ["invoice"]}
//
// Key order of the document is preserved.
func ParseSelection(data []byte) (Selection, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &SelectionError{Message: err.Error()}
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, &SelectionError{Message: "empty document"}
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &SelectionError{Line: root.Line, Message: "expected an object of schema name to table list"}
	}
	if len(root.Content) == 0 {
		return nil, &SelectionError{Line: root.Line, Message: "no schemas selected"}
	}
	var (
		sel  Selection
		seen = make(map[string]struct{})
	)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i], root.Content[i+1]
		if key.Kind != yaml.ScalarNode || key.Value == "" {
			return nil, &SelectionError{Line: key.Line, Message: "schema name must be a non-empty string"}
		}
		if _, ok := seen[key.Value]; ok {
			return nil, &SelectionError{Line: key.Line, Message: fmt.Sprintf("schema %q listed twice", key.Value)}
		}
		seen[key.Value] = struct{}{}
		if value.Kind != yaml.SequenceNode {
			return nil, &SelectionError{Line: value.Line, Message: fmt.Sprintf("tables of schema %q must be a list", key.Value)}
		}
		ss := SchemaSelection{Schema: key.Value}
		tables := make(map[string]struct{}, len(value.Content))
		for _, t := range value.Content {
			if t.Kind != yaml.ScalarNode || t.Tag != "!!str" || t.Value == "" {
				return nil, &SelectionError{Line: t.Line, Message: fmt.Sprintf("table names of schema %q must be non-empty strings", key.Value)}
			}
			if _, ok := tables[t.Value]; ok {
				return nil, &SelectionError{Line: t.Line, Message: fmt.Sprintf("table %q listed twice", t.Value)}
			}
			tables[t.Value] = struct{}{}
			ss.Tables = append(ss.Tables, t.Value)
		}
		if len(ss.Tables) == 0 {
			return nil, &SelectionError{Line: value.Line, Message: fmt.Sprintf("no tables selected for schema %q", key.Value)}
		}
		sel = append(sel, ss)
	}
	return sel, nil
}

// ReadSelection reads and decodes the selection document at path.
func ReadSelection(path string) (Selection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("pgproto/load: read selection: %w", err)
	}
	return ParseSelection(data)
}
