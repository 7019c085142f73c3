package expect

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Step is one exchange of a Script: optionally send a line, then wait for
// one of Patterns.
type Step struct {
	// Name identifies the step in errors and logs.
	Name string

	// Line is sent before waiting when Send is true. An empty Line with
	// Send set sends a bare newline.
	Line string
	Send bool

	// Patterns are the acceptable outcomes of the step.
	Patterns []*regexp.Regexp

	// Timeout bounds the wait (0 = script default).
	Timeout time.Duration
}

// Script is an ordered list of steps run against an Expecter.
type Script struct {
	Name           string
	Steps          []Step
	DefaultTimeout time.Duration
}

// StepError reports which step of a script failed.
type StepError struct {
	Script string
	Step   string
	Err    error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("script %s: step %s: %v", e.Script, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// ExpectStep returns a step that only waits.
func ExpectStep(name string, patterns ...*regexp.Regexp) Step {
	return Step{Name: name, Patterns: patterns}
}

// SendStep returns a step that sends line and waits for patterns.
func SendStep(name, line string, patterns ...*regexp.Regexp) Step {
	return Step{Name: name, Line: line, Send: true, Patterns: patterns}
}

// Run executes the script without a deadline of its own.
func (s *Script) Run(e *Expecter) ([]int, error) {
	return RunScript(context.Background(), e, s)
}

// RunScript executes s and returns the matched pattern index of every step.
// It stops at the first failing step. ctx is checked between steps; a
// running Expect is bounded by the step timeout only.
func RunScript(ctx context.Context, e *Expecter, s *Script) ([]int, error) {
	matched := make([]int, 0, len(s.Steps))
	for _, step := range s.Steps {
		if err := ctx.Err(); err != nil {
			return matched, &StepError{Script: s.Name, Step: step.Name, Err: err}
		}
		if step.Send {
			if err := e.SendLine(step.Line); err != nil {
				return matched, &StepError{Script: s.Name, Step: step.Name, Err: err}
			}
		}

		timeout := step.Timeout
		if timeout == 0 {
			timeout = s.DefaultTimeout
		}

		idx, err := e.Expect(step.Patterns, timeout)
		if err != nil {
			return matched, &StepError{Script: s.Name, Step: step.Name, Err: err}
		}
		matched = append(matched, idx)
	}
	return matched, nil
}

type scriptFile struct {
	Name    string        `yaml:"name"`
	Timeout time.Duration `yaml:"timeout"`
	Steps   []struct {
		Name    string        `yaml:"name"`
		Send    *string       `yaml:"send"`
		Expect  []string      `yaml:"expect"`
		Timeout time.Duration `yaml:"timeout"`
	} `yaml:"steps"`
}

// ParseScript compiles a YAML dialog:
//
//	name: wait-boot
//	timeout: 30s
//	steps:
//	  - name: login
//	    expect: ['(^|\n).*[#$] ']
//	  - name: ready
//	    send: systemctl is-system-running
//	    expect: ['running', 'degraded']
//
// The pattern "EOF" stands for end of stream.
func ParseScript(data []byte) (*Script, error) {
	var f scriptFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("parse script %s: no steps", f.Name)
	}

	s := &Script{Name: f.Name, DefaultTimeout: f.Timeout}
	for i, fs := range f.Steps {
		name := fs.Name
		if name == "" {
			name = fmt.Sprintf("step-%d", i+1)
		}
		if len(fs.Expect) == 0 {
			return nil, fmt.Errorf("parse script %s: step %s: no expect patterns", f.Name, name)
		}

		step := Step{Name: name, Timeout: fs.Timeout}
		if fs.Send != nil {
			step.Send = true
			step.Line = *fs.Send
		}
		for _, expr := range fs.Expect {
			if expr == "EOF" {
				step.Patterns = append(step.Patterns, EOF)
				continue
			}
			re, err := regexp.Compile(expr)
			if err != nil {
				return nil, fmt.Errorf("parse script %s: step %s: %w", f.Name, name, err)
			}
			step.Patterns = append(step.Patterns, re)
		}
		s.Steps = append(s.Steps, step)
	}
	return s, nil
}
