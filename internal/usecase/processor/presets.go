package processor

import (
	"errors"
	"fmt"

	"github.com/avito-tech/gravure/internal/config"
	"github.com/avito-tech/gravure/internal/domain"
	"github.com/avito-tech/gravure/internal/template"
	"github.com/avito-tech/gravure/internal/usecase/processor/operations"
)

var ErrUnknownPreset = errors.New("unknown preset")

type Task struct {
	Name     string
	Pipeline *Pipeline
	// URL is where the result of the task ends up, if configured.
	URL *template.PathTemplate
}

type Preset struct {
	Name  string
	Tasks []Task
}

// Registry holds every compiled preset. It is built once at start-up and is
// read-only afterwards.
type Registry struct {
	presets map[string]*Preset
	names   []string
}

func CompilePresets(presets config.Presets, deps operations.Deps) (*Registry, error) {
	r := &Registry{
		presets: make(map[string]*Preset, len(presets)),
		names:   presets.Names(),
	}

	for _, key := range r.names {
		raw := presets[key]
		p := &Preset{Name: key, Tasks: make([]Task, 0, len(raw.Tasks))}

		for _, rt := range raw.Tasks {
			pipeline, err := Compile(rt.Name, rt.Actions, deps)
			if err != nil {
				var cie *domain.ConfigInitError
				if errors.As(err, &cie) {
					cie.Preset = key
				}
				return nil, err
			}

			task := Task{Name: rt.Name, Pipeline: pipeline}

			if rt.URLTemplate != "" {
				url, err := template.Compile(rt.URLTemplate)
				if err != nil {
					return nil, &domain.ConfigInitError{
						Preset: key,
						Task:   rt.Name,
						Index:  -1,
						Err:    domain.NewActionError(domain.KindTemplateCompile, "url_template", err),
					}
				}
				task.URL = url
			}

			p.Tasks = append(p.Tasks, task)
		}

		r.presets[key] = p
	}

	return r, nil
}

func (r *Registry) Preset(name string) (*Preset, error) {
	p, ok := r.presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p, nil
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}
