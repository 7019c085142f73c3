package session

import (
	"context"
	"log/slog"
	"regexp"
	"time"

	"github.com/acolita/openswitch-harness/internal/expect"
	"github.com/acolita/openswitch-harness/internal/prompt"
)

// negotiate turns a bash shell whose prompt is already forced into a vtysh
// shell with a uniquely matchable prompt. It reports whether the image
// supports "set prompt". When it does, echo is disabled in bash and vtysh
// is started again, so no command echo reaches the session.
func negotiate(ctx context.Context, e *expect.Expecter, p Profile) (bool, error) {
	supported, err := trySetPrompt(ctx, e, p)
	if err != nil || !supported {
		return false, err
	}

	// Leaving vtysh resets its prompt, so it is forced again below.
	back := &expect.Script{
		Name:           "disable echo",
		DefaultTimeout: p.NegotiationTimeout,
		Steps: []expect.Step{
			expect.SendStep("exit vtysh", "exit", prompt.BashForcedPrompt),
			expect.SendStep("stty", "stty -echo", prompt.BashForcedPrompt),
		},
	}
	if _, err := expect.RunScript(ctx, e, back); err != nil {
		return false, err
	}

	supported, err = trySetPrompt(ctx, e, p)
	if err != nil {
		return false, err
	}
	if !supported {
		slog.Warn("vtysh rejected set prompt after restart, falling back to echo filtering",
			slog.String("shell", p.Name),
		)
	}
	return supported, nil
}

// trySetPrompt launches vtysh and issues "set prompt". The standard prompt
// is listed first so an ambiguous buffer resolves to "unsupported".
func trySetPrompt(ctx context.Context, e *expect.Expecter, p Profile) (bool, error) {
	s := &expect.Script{
		Name:           "set prompt",
		DefaultTimeout: p.NegotiationTimeout,
		Steps: []expect.Step{
			expect.SendStep("launch vtysh", p.VtyshCommand, prompt.VtyshStandardPrompt),
			{
				Name:     "set prompt",
				Line:     prompt.SetPromptCommand(prompt.VtyshForcedToken),
				Send:     true,
				Patterns: standardThenForced,
			},
		},
	}
	matched, err := expect.RunScript(ctx, e, s)
	if err != nil {
		return false, err
	}
	return matched[1] == 1, nil
}

var standardThenForced = []*regexp.Regexp{prompt.VtyshStandardPrompt, prompt.VtyshForcedPrompt}

// bootstrap waits for the first bash prompt and forces PS1.
func bootstrap(ctx context.Context, e *expect.Expecter, p Profile) error {
	s := &expect.Script{
		Name:           "bootstrap",
		DefaultTimeout: p.NegotiationTimeout,
		Steps: []expect.Step{
			expect.ExpectStep("initial prompt", p.InitialPrompt),
			expect.SendStep("force prompt", prompt.ForcePromptCommand(prompt.BashForcedToken), prompt.BashForcedPromptLine),
		},
	}
	_, err := expect.RunScript(ctx, e, s)
	return err
}

// settle sends an empty line and waits for the session prompt, leaving
// the buffer empty for the first command.
func settle(e *expect.Expecter, sessionPrompt *regexp.Regexp, timeout time.Duration) error {
	if err := e.SendLine(""); err != nil {
		return err
	}
	_, err := e.Expect([]*regexp.Regexp{sessionPrompt}, timeout)
	return err
}
