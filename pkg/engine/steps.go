package engine

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"github.com/entfalten/entfalten/pkg/api"
	"github.com/entfalten/entfalten/pkg/debug"
	"github.com/entfalten/entfalten/pkg/observability"
	"github.com/entfalten/entfalten/pkg/template"
)

// listMarkerPattern strips leading markdown list markers: bullets and
// numbered prefixes like "1." or "2)".
var listMarkerPattern = regexp.MustCompile(`^([-*+•]|\d+[.)])\s+`)

// quotePairs are the surrounding quote styles stripped from cleaned
// lines.
var quotePairs = [][2]string{
	{`"`, `"`},
	{`'`, `'`},
	{"“", "”"},
}

// CleanLines splits completion text into its fork-input items: each
// line is trimmed, stripped of markdown list markers and surrounding
// quotes, and empty lines are dropped.
func CleanLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if cleaned := cleanLine(line); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}

func cleanLine(line string) string {
	s := strings.TrimSpace(line)
	s = listMarkerPattern.ReplaceAllString(s, "")
	for _, pair := range quotePairs {
		if len(s) > len(pair[0])+len(pair[1]) && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimPrefix(s, pair[0])
			s = strings.TrimSuffix(s, pair[1])
			break
		}
	}
	return strings.TrimSpace(s)
}

// runSteps executes the declared steps in strict sequence. Within a
// step every fork runs concurrently and the step completes only once
// all forks have settled. A failed fork contributes no lines to the
// next step's input set; siblings proceed unaffected.
func (e *Engine) runSteps(ctx context.Context, eff *EffectiveRequest, items []string) []api.StepTrace {
	traces := make([]api.StepTrace, 0, len(eff.Steps))

	for stepIdx, step := range eff.Steps {
		observability.StepFanout.Observe(float64(len(items)))
		debug.Log("engine", "step starting", "step", stepIdx, "forks", len(items))

		forks := make([]api.ForkTrace, len(items))
		var wg sync.WaitGroup
		for i, item := range items {
			wg.Add(1)
			go func(idx int, item string) {
				defer wg.Done()
				forks[idx] = e.runFork(ctx, eff, step, item)
			}(i, item)
		}
		wg.Wait()

		traces = append(traces, api.StepTrace{Forks: forks})

		// Fan in: the next step's input is the flattened line output of
		// every fork of this step.
		var next []string
		for _, f := range forks {
			next = append(next, f.Response...)
		}
		items = next
	}

	return traces
}

// runFork resolves the step template for one item and issues its
// completion call. Errors are recorded on the trace, never propagated.
func (e *Engine) runFork(ctx context.Context, eff *EffectiveRequest, step template.Step, item string) api.ForkTrace {
	vars := make(map[string]any, len(eff.Input)+1)
	for k, v := range eff.Input {
		vars[k] = v
	}
	vars["item"] = item

	msgs := template.Resolve(step, vars)

	// Forks request a single choice regardless of the root n; only the
	// first choice feeds the next step.
	result, err := e.callBackend(ctx, eff, msgs, 0)
	if err != nil {
		observability.ForksTotal.WithLabelValues("error").Inc()
		debug.Log("engine", "fork failed", "item", item, "error", err.Error())
		return api.ForkTrace{Item: item, InputMessages: msgs, Error: err.Error()}
	}

	observability.ForksTotal.WithLabelValues("success").Inc()

	var text string
	if len(result.Texts) > 0 {
		text = result.Texts[0]
	}

	return api.ForkTrace{
		Item:          item,
		InputMessages: msgs,
		Completion:    result.Raw,
		Response:      CleanLines(text),
	}
}
