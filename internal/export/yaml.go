package export

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// InjectColumnLineage writes deps (column name -> upstream columns) into
// the dbt schema document as columns[].meta.lineage of the named model.
// Missing model and column entries are appended; unrelated keys, ordering
// and comments are kept.
func InjectColumnLineage(schemaYAML []byte, model string, deps map[string][]string) ([]byte, error) {
	var doc yaml.Node
	if len(bytes.TrimSpace(schemaYAML)) > 0 {
		if err := yaml.Unmarshal(schemaYAML, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse schema file: %w", err)
		}
	}
	if doc.Kind == 0 {
		doc = yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{mappingNode()}}
		setValue(doc.Content[0], "version", scalarNode("2", "!!int"))
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("schema file root is not a mapping")
	}

	models := ensure(root, "models", yaml.SequenceNode)
	if models == nil {
		return nil, fmt.Errorf("models is not a list")
	}
	modelNode := findNamed(models, model)
	if modelNode == nil {
		modelNode = mappingNode()
		setValue(modelNode, "name", scalarNode(model, "!!str"))
		models.Content = append(models.Content, modelNode)
	}

	columns := ensure(modelNode, "columns", yaml.SequenceNode)
	if columns == nil {
		return nil, fmt.Errorf("columns of model %s is not a list", model)
	}

	names := make([]string, 0, len(deps))
	for name := range deps {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		col := findNamed(columns, name)
		if col == nil {
			col = mappingNode()
			setValue(col, "name", scalarNode(name, "!!str"))
			columns.Content = append(columns.Content, col)
		}
		meta := ensure(col, "meta", yaml.MappingNode)
		if meta == nil {
			return nil, fmt.Errorf("meta of column %s.%s is not a mapping", model, name)
		}

		sources := append([]string(nil), deps[name]...)
		sort.Strings(sources)
		seq := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, src := range sources {
			seq.Content = append(seq.Content, scalarNode(src, "!!str"))
		}
		setValue(meta, "lineage", seq)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return nil, fmt.Errorf("failed to encode schema file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func mappingNode() *yaml.Node {
	return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
}

func scalarNode(value, tag string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: value}
}

// lookup returns the value for key in a mapping node.
func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			return m.Content[i+1]
		}
	}
	return nil
}

func setValue(m *yaml.Node, key string, value *yaml.Node) {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			m.Content[i+1] = value
			return
		}
	}
	m.Content = append(m.Content, scalarNode(key, "!!str"), value)
}

// ensure returns the child of m under key, creating it with the given kind
// when absent or null. It returns nil when the child has another kind.
func ensure(m *yaml.Node, key string, kind yaml.Kind) *yaml.Node {
	child := lookup(m, key)
	if child == nil || (child.Kind == yaml.ScalarNode && child.Tag == "!!null") {
		child = &yaml.Node{Kind: kind}
		if kind == yaml.SequenceNode {
			child.Tag = "!!seq"
		} else {
			child.Tag = "!!map"
		}
		setValue(m, key, child)
		return child
	}
	if child.Kind != kind {
		return nil
	}
	return child
}

// findNamed returns the mapping in seq whose name matches, ignoring case.
func findNamed(seq *yaml.Node, name string) *yaml.Node {
	for _, item := range seq.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		if n := lookup(item, "name"); n != nil && strings.EqualFold(n.Value, name) {
			return item
		}
	}
	return nil
}
