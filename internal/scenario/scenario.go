// Package scenario loads YAML step lists and runs them through the
// controller, asking a planner for new selectors when a step fails.
package scenario

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/v0xg/uistep/internal/controller"
)

// Scenario is a named list of steps against one start page.
type Scenario struct {
	Name string `yaml:"name" json:"name"`
	// URL is loaded before the first step; empty keeps the current page.
	URL  string `yaml:"url,omitempty" json:"url,omitempty"`
	Goal string `yaml:"goal,omitempty" json:"goal,omitempty"`
	// ContinueOnFailure runs the remaining steps after a step fails.
	ContinueOnFailure bool              `yaml:"continue_on_failure,omitempty" json:"continue_on_failure,omitempty"`
	Steps             []controller.Step `yaml:"steps" json:"steps"`
}

// Load reads a scenario file.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario. Unknown fields are rejected.
func Parse(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var sc Scenario
	if err := dec.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty scenario")
		}
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks that every step has a known action and a description.
func (s *Scenario) Validate() error {
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %q has no steps", s.Name)
	}
	var errs []error
	for i, st := range s.Steps {
		if st.Kind == 0 {
			errs = append(errs, fmt.Errorf("step %d: missing action", i+1))
		}
		if strings.TrimSpace(st.Description) == "" {
			errs = append(errs, fmt.Errorf("step %d: missing description", i+1))
		}
	}
	return errors.Join(errs...)
}
