package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  %s\n", FormatEvent(ev))
	}
	return buf.String()
}

// FormatEvent renders one trace event on a single line.
func FormatEvent(ev TraceEvent) string {
	if ev.Type == EventStep {
		return fmt.Sprintf("[%d] step %d: %s", ev.Seq, ev.Step, ev.Action)
	}
	line := fmt.Sprintf("[%d] %s %s", ev.Seq, ev.Subscription, ev.Kind)
	if ev.Kind == KindError {
		return line + ": " + ev.Error
	}
	if ev.Insertions != nil || ev.Deletions != nil || ev.Modifications != nil {
		line += fmt.Sprintf(" ins=%v del=%v mod=%v", orEmpty(ev.Insertions), orEmpty(ev.Deletions), orEmpty(ev.Modifications))
	}
	return line + fmt.Sprintf(" keys=%v", ev.Keys)
}

func orEmpty(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}

func evaluate(r *Result, a Assertion) error {
	switch a.Type {
	case AssertNotificationCount:
		return assertNotificationCount(r, a)
	case AssertChanges:
		return assertChanges(r, a)
	case AssertFinalKeys:
		return assertFinalKeys(r, a)
	}
	return fmt.Errorf("unknown assertion type %q", a.Type)
}

func assertNotificationCount(r *Result, a Assertion) error {
	got := len(r.Notifications(a.Subscription))
	if got == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertNotificationCount,
		Expected: fmt.Sprintf("%s notified %d times", a.Subscription, a.Count),
		Actual:   fmt.Sprintf("notified %d times", got),
		Trace:    r.Trace,
	}
}

// assertChanges matches the last notification delivered during a step.
func assertChanges(r *Result, a Assertion) error {
	var last *TraceEvent
	for _, ev := range r.Notifications(a.Subscription) {
		if ev.Step == a.Step {
			last = &ev
		}
	}
	want := fmt.Sprintf("ins=%v del=%v mod=%v", orEmpty(a.Insertions), orEmpty(a.Deletions), orEmpty(a.Modifications))
	if last == nil {
		return &AssertionError{
			Type:     AssertChanges,
			Expected: fmt.Sprintf("%s notified during step %d with %s", a.Subscription, a.Step, want),
			Actual:   "no notification",
			Trace:    r.Trace,
		}
	}
	if slices.Equal(orEmpty(last.Insertions), orEmpty(a.Insertions)) &&
		slices.Equal(orEmpty(last.Deletions), orEmpty(a.Deletions)) &&
		slices.Equal(orEmpty(last.Modifications), orEmpty(a.Modifications)) {
		return nil
	}
	return &AssertionError{
		Type:     AssertChanges,
		Expected: want,
		Actual:   fmt.Sprintf("ins=%v del=%v mod=%v", orEmpty(last.Insertions), orEmpty(last.Deletions), orEmpty(last.Modifications)),
		Trace:    r.Trace,
	}
}

func assertFinalKeys(r *Result, a Assertion) error {
	got, ok := r.Final[a.Subscription]
	if !ok {
		return &AssertionError{
			Type:     AssertFinalKeys,
			Expected: fmt.Sprintf("%s keys %v", a.Subscription, a.Keys),
			Actual:   "collection is no longer valid",
			Trace:    r.Trace,
		}
	}
	if slices.Equal(got, a.Keys) || (len(got) == 0 && len(a.Keys) == 0) {
		return nil
	}
	return &AssertionError{
		Type:     AssertFinalKeys,
		Expected: fmt.Sprintf("%v", a.Keys),
		Actual:   fmt.Sprintf("%v", got),
		Trace:    r.Trace,
	}
}
