package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/livecoll/internal/ir"
)

// TraceSnapshot is the golden form of a scenario run.
type TraceSnapshot struct {
	ScenarioName string              `json:"scenario_name"`
	Trace        []TraceEvent        `json:"trace"`
	Final        map[string][]string `json:"final"`
}

// MarshalSnapshot renders a run as canonical JSON with sorted keys.
func MarshalSnapshot(name string, r *Result) ([]byte, error) {
	s := TraceSnapshot{ScenarioName: name, Trace: r.Trace, Final: r.Final}
	return ir.MarshalCanonical(s.toCanonicalMap())
}

// toCanonicalMap converts the snapshot into values ir.MarshalCanonical
// accepts.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"type": ev.Type,
			"seq":  ev.Seq,
			"step": ev.Step,
		}
		if ev.Action != "" {
			m["action"] = ev.Action
		}
		if ev.Subscription != "" {
			m["subscription"] = ev.Subscription
		}
		if ev.Kind != "" {
			m["kind"] = ev.Kind
		}
		if ev.Insertions != nil || ev.Deletions != nil || ev.Modifications != nil {
			m["insertions"] = ints(ev.Insertions)
			m["deletions"] = ints(ev.Deletions)
			m["modifications"] = ints(ev.Modifications)
		}
		if ev.Keys != nil {
			m["keys"] = strs(ev.Keys)
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	final := make(map[string]any, len(s.Final))
	for name, keys := range s.Final {
		final[name] = strs(keys)
	}
	return map[string]any{
		"scenario_name": s.ScenarioName,
		"trace":         trace,
		"final":         final,
	}
}

func ints(xs []int) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

func strs(xs []string) []any {
	out := make([]any, len(xs))
	for i, x := range xs {
		out[i] = x
	}
	return out
}

// RunWithGolden executes a scenario and compares its trace against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(scenarioName, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
