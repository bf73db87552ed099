// Package synonyms loads ordered synonym rule sets from YAML, JSON and the
// line-oriented "from => to" text form.
package synonyms

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thebtf/feudsurvey/pkg/models"
)

// Separator divides the two sides of a rule in the text form.
const Separator = "=>"

// File is the YAML file layout.
type File struct {
	Synonyms []models.SynonymRule `yaml:"synonyms"`
}

// Load reads the rule file at path. A missing file yields an empty set.
// Files ending in .txt are read in the text form; everything else is parsed
// with Parse.
func Load(path string) (models.SynonymRuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return models.SynonymRuleSet{}, nil
		}
		return models.SynonymRuleSet{}, err
	}
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		return ParseText(string(data)), nil
	}
	return Parse(data)
}

// Parse decodes a rule set from YAML or JSON, keeping definition order. It
// accepts a list of {from, to} objects, a from -> to mapping, either of those
// under a top-level "synonyms" key, or plain "from => to" lines. Rules with
// an empty from are dropped.
func Parse(data []byte) (models.SynonymRuleSet, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return models.SynonymRuleSet{}, fmt.Errorf("parse synonyms: %w", err)
	}
	if len(doc.Content) == 0 {
		return models.SynonymRuleSet{}, nil
	}

	root := doc.Content[0]
	if root.Kind == yaml.MappingNode {
		if inner := lookup(root, "synonyms"); inner != nil {
			root = inner
		}
	}

	switch root.Kind {
	case yaml.MappingNode:
		rules := make([]models.SynonymRule, 0, len(root.Content)/2)
		for i := 0; i+1 < len(root.Content); i += 2 {
			k, v := root.Content[i], root.Content[i+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				continue
			}
			rules = append(rules, models.SynonymRule{From: k.Value, To: scalar(v)})
		}
		return models.NewSynonymRuleSet(rules...), nil

	case yaml.SequenceNode:
		rules := make([]models.SynonymRule, 0, len(root.Content))
		for _, item := range root.Content {
			var r models.SynonymRule
			if item.Kind != yaml.MappingNode || item.Decode(&r) != nil {
				continue
			}
			rules = append(rules, r)
		}
		return models.NewSynonymRuleSet(rules...), nil

	case yaml.ScalarNode:
		if root.Tag == "!!null" {
			return models.SynonymRuleSet{}, nil
		}
		return ParseText(string(data)), nil
	}

	return models.SynonymRuleSet{}, fmt.Errorf("parse synonyms: unsupported document shape")
}

// ParseText reads one rule per line in the form "from => to". The line is
// split on the first separator; lines without one, or with an empty from,
// are ignored.
func ParseText(text string) models.SynonymRuleSet {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	rules := make([]models.SynonymRule, 0, len(lines))
	for _, line := range lines {
		from, to, ok := strings.Cut(line, Separator)
		if !ok {
			continue
		}
		rules = append(rules, models.SynonymRule{
			From: strings.TrimSpace(from),
			To:   strings.TrimSpace(to),
		})
	}
	return models.NewSynonymRuleSet(rules...)
}

// Marshal renders rules as a YAML File.
func Marshal(rules models.SynonymRuleSet) ([]byte, error) {
	return yaml.Marshal(File{Synonyms: rules.Rules()})
}

func lookup(m *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(m.Content); i += 2 {
		if m.Content[i].Value == key {
			v := m.Content[i+1]
			if v.Kind == yaml.MappingNode || v.Kind == yaml.SequenceNode {
				return v
			}
			return nil
		}
	}
	return nil
}

func scalar(n *yaml.Node) string {
	if n.Tag == "!!null" {
		return ""
	}
	return n.Value
}
