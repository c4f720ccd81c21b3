package config

import (
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

// Presets maps a preset name (the first segment of the upload route) to its
// tasks.
type Presets map[string]Preset

type Preset struct {
	Name  string `json:"name" yaml:"name"`
	Tasks []Task `json:"tasks" yaml:"tasks" validate:"required,min=1,dive"`
}

// Task is one pipeline of a preset. Actions are raw parameter lists such as
// ["resize", "60", "60"]; they are compiled once at start-up.
type Task struct {
	Name        string     `json:"name" yaml:"name" validate:"required"`
	Actions     [][]string `json:"actions" yaml:"actions" validate:"required,min=1,dive,min=1"`
	URLTemplate string     `json:"url_template" yaml:"url_template"`
}

type presetsFile struct {
	Presets Presets `json:"presets" yaml:"presets" validate:"required,min=1,dive,keys,required,endkeys"`
}

func LoadPresets(path string) (Presets, error) {
	var f presetsFile
	if err := cleanenv.ReadConfig(path, &f); err != nil {
		return nil, fmt.Errorf("failed to read presets %s: %w", path, err)
	}

	if err := validator.New().Struct(&f); err != nil {
		return nil, fmt.Errorf("%w: presets: %w", ErrInvalidConfig, err)
	}

	for key, p := range f.Presets {
		if p.Name == "" {
			p.Name = key
			f.Presets[key] = p
		}
	}

	return f.Presets, nil
}

func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
