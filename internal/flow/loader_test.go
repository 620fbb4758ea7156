package flow

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/menuflow/menuflow/internal/models"
)

const testFlowYAML = `
name: pet-shop
start: welcome
intents:
  - adopt
  - groom
steps:
  - id: welcome
    kind: button
    text: "Welcome! What brings you in?"
    store_key: main_choice
    default_intent: browse
    options:
      - id: adopt
        label: Adopt a pet
      - id: groom
        label: Book grooming
    transitions:
      adopt: ask_species
      groom: ask_breed
  - id: ask_species
    kind: input
    text: "What kind of pet are you looking for?"
    store_key: species
    next: confirm
  - id: ask_breed
    kind: input
    text: "What breed is your pet?"
    store_key: breed
    next: confirm
  - id: confirm
    kind: end
    text: "Got it, we'll be in touch about your {{species}}{{breed}}."
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(testFlowYAML))
	if err != nil {
		t.Fatalf("Parse() error = %v, want nil", err)
	}

	if f.Name() != "pet-shop" {
		t.Errorf("Name() = %q, want %q", f.Name(), "pet-shop")
	}
	if f.StartStepID() != "welcome" {
		t.Errorf("StartStepID() = %q, want %q", f.StartStepID(), "welcome")
	}
	if f.Len() != 4 {
		t.Errorf("Len() = %d, want 4", f.Len())
	}
	if !f.HasIntent("adopt") || !f.HasIntent("groom") {
		t.Error("HasIntent() missing declared intents")
	}

	welcome := f.Start()
	if welcome.Kind != models.StepKindButton {
		t.Errorf("start step kind = %q, want %q", welcome.Kind, models.StepKindButton)
	}
	if welcome.StoreKey != "main_choice" {
		t.Errorf("start step store key = %q, want %q", welcome.StoreKey, "main_choice")
	}
	if welcome.DefaultIntent != "browse" {
		t.Errorf("start step default intent = %q, want %q", welcome.DefaultIntent, "browse")
	}
	if got := welcome.Transitions["adopt"]; got != "ask_species" {
		t.Errorf("transitions[adopt] = %q, want %q", got, "ask_species")
	}
	if len(welcome.Options) != 2 || welcome.Options[1].Label != "Book grooming" {
		t.Errorf("options = %+v, want two options with labels", welcome.Options)
	}
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("steps: [unclosed"))
	if err == nil {
		t.Fatal("Parse() error = nil, want YAML error")
	}
	if !strings.Contains(err.Error(), "failed to parse flow definition") {
		t.Errorf("Parse() error = %q, want parse failure", err.Error())
	}
}

func TestParseRejectsInvalidGraph(t *testing.T) {
	doc := `
name: broken
start: a
steps:
  - id: a
    kind: input
    text: "?"
    next: missing
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("Parse() error = nil, want validation error")
	}
	if !strings.Contains(err.Error(), "invalid flow definition") {
		t.Errorf("Parse() error = %q, want validation failure", err.Error())
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flow.yaml")
	if err := os.WriteFile(path, []byte(testFlowYAML), 0644); err != nil {
		t.Fatalf("failed to write flow file: %v", err)
	}

	f, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v, want nil", err)
	}
	if f.Name() != "pet-shop" {
		t.Errorf("Name() = %q, want %q", f.Name(), "pet-shop")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("LoadFile() error = nil for missing file, want error")
	}
}
