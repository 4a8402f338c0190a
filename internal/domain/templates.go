package domain

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

type Template string

const (
	TemplatePairProgramming Template = "pair-programming"
	TemplateCodeReview      Template = "code-review"
	TemplateDesignReview    Template = "design-review"
	TemplateBrainstorming   Template = "brainstorming"
	TemplateTraining        Template = "training"
	TemplateDebugging       Template = "debugging"
	TemplateCustom          Template = "custom"
)

type TemplatePreset struct {
	Name            Template `yaml:"-"`
	Description     string   `yaml:"description"`
	MaxParticipants int      `yaml:"maxParticipants"`
	AllowGuests     bool     `yaml:"allowGuests"`
	Features        Features `yaml:"features"`
}

// Templates maps template names to their presets.
type Templates map[Template]TemplatePreset

//go:embed templates.yaml
var builtinTemplates []byte

var defaultTemplates = mustParseTemplates(builtinTemplates)

// DefaultTemplates returns the built-in presets.
func DefaultTemplates() Templates {
	out := make(Templates, len(defaultTemplates))
	for k, v := range defaultTemplates {
		out[k] = v
	}
	return out
}

func ParseTemplates(data []byte) (Templates, error) {
	var raw map[string]TemplatePreset
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	out := make(Templates, len(raw))
	for name, preset := range raw {
		if preset.MaxParticipants <= 0 {
			return nil, fmt.Errorf("template %q: %w", name, ErrInvalidCapacity)
		}
		preset.Name = Template(name)
		out[preset.Name] = preset
	}
	return out, nil
}

// LoadTemplates reads presets from path and layers them over the built-in ones.
func LoadTemplates(path string) (Templates, error) {
	out := DefaultTemplates()
	if path == "" {
		return out, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read templates: %w", err)
	}
	custom, err := ParseTemplates(data)
	if err != nil {
		return nil, err
	}
	for k, v := range custom {
		out[k] = v
	}
	return out, nil
}

func (t Templates) Get(name Template) (TemplatePreset, error) {
	preset, ok := t[name]
	if !ok {
		return TemplatePreset{}, fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	return preset, nil
}

// Names returns the template names in sorted order.
func (t Templates) Names() []Template {
	names := make([]Template, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func mustParseTemplates(data []byte) Templates {
	t, err := ParseTemplates(data)
	if err != nil {
		panic(err)
	}
	return t
}
