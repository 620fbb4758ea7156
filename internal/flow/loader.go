// Package flow provides loading of flow definitions from YAML documents.
package flow

import (
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/menuflow/menuflow/internal/models"
)

// fileFlow mirrors the on-disk YAML layout of a flow definition.
type fileFlow struct {
	Name    string     `yaml:"name"`
	Start   string     `yaml:"start"`
	Intents []string   `yaml:"intents"`
	Steps   []fileStep `yaml:"steps"`
}

type fileStep struct {
	ID            string            `yaml:"id"`
	Kind          string            `yaml:"kind"`
	Text          string            `yaml:"text"`
	StoreKey      string            `yaml:"store_key"`
	DefaultIntent string            `yaml:"default_intent"`
	Options       []models.Option   `yaml:"options"`
	Next          string            `yaml:"next"`
	Transitions   map[string]string `yaml:"transitions"`
}

// Parse builds and validates a Flow from a YAML document.
func Parse(data []byte) (*Flow, error) {
	var ff fileFlow
	if err := yaml.Unmarshal(data, &ff); err != nil {
		slog.Error("Flow Parse YAML unmarshal failed", "error", err)
		return nil, fmt.Errorf("failed to parse flow definition: %w", err)
	}

	steps := make([]models.Step, len(ff.Steps))
	for i, fs := range ff.Steps {
		steps[i] = models.Step{
			ID:            fs.ID,
			Kind:          models.StepKind(fs.Kind),
			Text:          fs.Text,
			StoreKey:      fs.StoreKey,
			DefaultIntent: fs.DefaultIntent,
			Options:       fs.Options,
			Next:          fs.Next,
			Transitions:   fs.Transitions,
		}
	}

	f, err := New(ff.Name, ff.Start, ff.Intents, steps)
	if err != nil {
		return nil, err
	}
	slog.Info("Flow definition parsed", "flow", f.Name(), "steps", f.Len())
	return f, nil
}

// LoadFile reads and parses a flow definition from a YAML file.
func LoadFile(path string) (*Flow, error) {
	slog.Debug("Flow LoadFile invoked", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Error("Flow LoadFile read failed", "error", err, "path", path)
		return nil, fmt.Errorf("failed to read flow file %s: %w", path, err)
	}
	return Parse(data)
}
