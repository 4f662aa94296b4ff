// Package script loads YAML queue scripts and compiles them onto a queue.
package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

var (
	// ErrInvalid is wrapped by every validation failure.
	ErrInvalid = errors.New("invalid script")
	// ErrExpectation fails a step whose observed page state did not match.
	ErrExpectation = errors.New("expectation not met")
	// ErrIncludeCycle is returned when scripts include each other.
	ErrIncludeCycle = errors.New("include cycle")
)

// Load reads and validates the script at path.
func Load(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	s.path = abs
	return s, nil
}

// Parse decodes and validates a script.
func Parse(data []byte) (*Script, error) {
	var s Script
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks every action for a known type and its required fields.
func (s *Script) Validate() error {
	if len(s.Actions) == 0 {
		return fmt.Errorf("%w: no actions", ErrInvalid)
	}
	for i, a := range s.Actions {
		if err := a.validate(); err != nil {
			return fmt.Errorf("%w: action %d (%s): %s", ErrInvalid, i+1, a.Type, err)
		}
	}
	return nil
}

func (a Action) validate() error {
	if a.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}

	switch a.Type {
	case ActionNavigate:
		if a.URL == "" {
			return errors.New("url is required")
		}
	case ActionWait:
		if a.Duration < 0 {
			return errors.New("duration must not be negative")
		}
	case ActionClick, ActionWaitFor, ActionGetText:
		if a.Selector == "" {
			return errors.New("selector is required")
		}
	case ActionType:
		if a.Selector == "" {
			return errors.New("selector is required")
		}
		if a.Text == "" {
			return errors.New("text is required")
		}
	case ActionGetAll:
		if a.Selector == "" {
			return errors.New("selector is required")
		}
		if a.MinCount < 0 {
			return errors.New("min_count must not be negative")
		}
		if a.AllowSkip && a.MinCount > 0 {
			return errors.New("allow_skip and min_count are mutually exclusive")
		}
	case ActionInclude:
		if a.Include == "" {
			return errors.New("include is required")
		}
	case "":
		return errors.New("action type is required")
	default:
		return fmt.Errorf("unknown action type: %s", a.Type)
	}
	return nil
}
