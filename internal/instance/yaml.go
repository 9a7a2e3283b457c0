package instance

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// yamlSource is the structured instantiation document. classes: declares
// explicit instances; templates: generates sibling instances from an input
// sequence.
type yamlSource struct {
	Classes   []yamlInstance `yaml:"classes"`
	Templates []yamlTemplate `yaml:"templates"`
}

type yamlInstance struct {
	Class      string         `yaml:"class"`
	Name       string         `yaml:"name"`
	Parent     string         `yaml:"parent"`
	Properties map[string]any `yaml:"properties"`
}

type yamlTemplate struct {
	Class      string            `yaml:"class"`
	Parent     string            `yaml:"parent"`
	Name       string            `yaml:"name"` // name pattern, defaults to "${item}"
	Input      []string          `yaml:"input"`
	Vars       map[string]string `yaml:"vars"` // extra literal substitution keys
	Properties map[string]any    `yaml:"properties"`
}

// loadYAML reads the structured template format. Explicit instances are
// created first, then templates expand in document order, so templates may
// parent onto explicit instances.
func (l *loader) loadYAML(path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return newError(KindSyntax, path, 0, "opening instantiation file: %v", err)
	}

	var src yamlSource
	if err := yaml.Unmarshal(raw, &src); err != nil {
		return newError(KindSyntax, path, 0, "invalid YAML: %v", err)
	}

	for _, y := range src.Classes {
		if y.Name == "" {
			return newError(KindSyntax, path, 0, "classes entry for %q is missing name", y.Class)
		}
		if err := l.add(y.Class, y.Name, y.Parent, stringify(y.Properties), 0); err != nil {
			return err
		}
	}

	for _, t := range src.Templates {
		if err := l.expandTemplate(path, t); err != nil {
			return err
		}
	}
	return nil
}

// expandTemplate emits one instance per item of the template's input
// sequence, substituting ${item} and any vars: keys into the name pattern
// and every property value.
func (l *loader) expandTemplate(path string, t yamlTemplate) error {
	if len(t.Input) == 0 {
		return newError(KindSyntax, path, 0, "template for class %q has an empty input sequence", t.Class)
	}
	namePattern := t.Name
	if namePattern == "" {
		namePattern = "${item}"
	}

	props := stringify(t.Properties)
	for _, item := range t.Input {
		pairs := []string{"${item}", item}
		for k, v := range t.Vars {
			pairs = append(pairs, "${"+k+"}", v)
		}
		sub := strings.NewReplacer(pairs...)

		name := sub.Replace(namePattern)
		instProps := make(map[string]string, len(props))
		for k, v := range props {
			instProps[k] = sub.Replace(v)
		}
		if err := l.add(t.Class, name, sub.Replace(t.Parent), instProps, 0); err != nil {
			return err
		}
	}
	return nil
}

// stringify flattens YAML scalar values into the engine's string property
// model. The engine never interprets property types; commands do.
func stringify(in map[string]any) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch tv := v.(type) {
		case string:
			out[k] = tv
		case nil:
			out[k] = ""
		default:
			out[k] = fmt.Sprint(tv)
		}
	}
	return out
}
