// Package recovery turns harness failures into troubleshooting hints.
package recovery

import (
	"regexp"
	"slices"
	"strings"
)

// Suggestion is a hint for one recognized failure.
type Suggestion struct {
	Error       string   // what was recognized
	Category    string   // docker, container, shell, crash, ports, setup
	Commands    []string // commands worth running next
	Explanation string
	Confidence  float64
}

// Analyzer matches failure text against known causes.
type Analyzer struct {
	rules []recoveryRule
}

type recoveryRule struct {
	name    string
	pattern *regexp.Regexp
	suggest func(matches []string) *Suggestion
}

// NewAnalyzer creates an analyzer with the default rules.
func NewAnalyzer() *Analyzer {
	return &Analyzer{rules: defaultRules()}
}

// Analyze returns the suggestions matching text, most confident first.
// Each rule contributes at most once.
func (a *Analyzer) Analyze(text string) []*Suggestion {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var suggestions []*Suggestion
	for _, rule := range a.rules {
		if m := rule.pattern.FindStringSubmatch(text); m != nil {
			suggestions = append(suggestions, rule.suggest(m))
		}
	}
	slices.SortStableFunc(suggestions, func(x, y *Suggestion) int {
		switch {
		case x.Confidence > y.Confidence:
			return -1
		case x.Confidence < y.Confidence:
			return 1
		}
		return 0
	})
	return suggestions
}

func group(m []string, i int) string {
	if i < len(m) {
		return m[i]
	}
	return ""
}

func defaultRules() []recoveryRule {
	return []recoveryRule{
		{
			name:    "docker_daemon",
			pattern: regexp.MustCompile(`(?i)cannot connect to the docker daemon|docker\.sock: connect:`),
			suggest: func(_ []string) *Suggestion {
				return &Suggestion{
					Error:       "Docker daemon unreachable",
					Category:    "docker",
					Commands:    []string{"systemctl status docker", "docker info"},
					Explanation: "The engine is not running or docker.host points elsewhere.",
					Confidence:  0.9,
				}
			},
		},
		{
			name:    "no_such_container",
			pattern: regexp.MustCompile(`(?i)no such container:?\s*(\S+)`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "Container not found: " + group(m, 1),
					Category:    "container",
					Commands:    []string{"docker ps -a"},
					Explanation: "Check the --container name or ID.",
					Confidence:  0.9,
				}
			},
		},
		{
			name:    "container_not_running",
			pattern: regexp.MustCompile(`(?i)container (\S+) is not running`),
			suggest: func(m []string) *Suggestion {
				id := group(m, 1)
				return &Suggestion{
					Error:       "Container not running: " + id,
					Category:    "container",
					Commands:    []string{"docker start " + id, "docker logs " + id},
					Explanation: "Shells can only be opened in a running container.",
					Confidence:  0.85,
				}
			},
		},
		{
			name:    "negotiation_timeout",
			pattern: regexp.MustCompile(`prompt negotiation timed out: (\S+)`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "Prompt negotiation failed on " + strings.TrimSuffix(group(m, 1), ":"),
					Category:    "shell",
					Commands:    []string{"opsharness exec -s bash -- systemctl --state=failed --all"},
					Explanation: "The switch daemons may still be starting. Raise shell.negotiation_timeout or check failed units.",
					Confidence:  0.7,
				}
			},
		},
		{
			name:    "vtysh_crash",
			pattern: regexp.MustCompile(`segmentation fault received when executing "([^"]*)"`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "vtysh crashed on: " + group(m, 1),
					Category:    "crash",
					Commands:    []string{"opsharness exec -s bash -- coredumpctl list", "opsharness exec -s bash -- coredumpctl gdb"},
					Explanation: "The shell reconnects on the next command; the core dump shows where it died.",
					Confidence:  0.8,
				}
			},
		},
		{
			name:    "missing_port",
			pattern: regexp.MustCompile(`missing port: (\S+)`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "No interface for port " + group(m, 1),
					Category:    "ports",
					Commands:    []string{"cat <shared_dir>/port_mapping.json"},
					Explanation: "The port mapping is written by provision. Run it first or check the label.",
					Confidence:  0.8,
				}
			},
		},
		{
			name:    "missing_device",
			pattern: regexp.MustCompile(`Cannot find device "([^"]+)"`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "Interface missing: " + group(m, 1),
					Category:    "ports",
					Commands:    []string{"opsharness exec -s bash_swns -- ip link show"},
					Explanation: "The interface is in neither the default nor the switch namespace.",
					Confidence:  0.6,
				}
			},
		},
		{
			name:    "missing_tool",
			pattern: regexp.MustCompile(`(?i)\b(vtysh|ovs-vsctl|python|valgrind|stdbuf)\b:?\s*(command )?not found`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "Missing in the image: " + group(m, 1),
					Category:    "setup",
					Commands:    []string{"docker image inspect <image>"},
					Explanation: "The image does not look like an OpenSwitch build.",
					Confidence:  0.75,
				}
			},
		},
		{
			name:    "permission_denied",
			pattern: regexp.MustCompile(`(?i)open (\S+): permission denied`),
			suggest: func(m []string) *Suggestion {
				return &Suggestion{
					Error:       "Permission denied: " + group(m, 1),
					Category:    "setup",
					Commands:    []string{"ls -ld " + group(m, 1)},
					Explanation: "The shared directory must be writable by the harness.",
					Confidence:  0.5,
				}
			},
		},
	}
}
