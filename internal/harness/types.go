package harness

// Trace event types.
const (
	EventStep         = "step"
	EventNotification = "notification"
)

// Notification kinds.
const (
	KindInitial = "initial"
	KindChanges = "changes"
	KindError   = "error"
)

// TraceEvent is one step or one delivered notification.
type TraceEvent struct {
	Type string `json:"type"`
	Seq  int64  `json:"seq"`

	// Step is the 1-based step during which the event happened.
	Step int `json:"step"`

	// Action is set for step events.
	Action string `json:"action,omitempty"`

	// Subscription and Kind are set for notification events.
	Subscription string `json:"subscription,omitempty"`
	Kind         string `json:"kind,omitempty"`

	// The change arrays are nil when the notification carried no change
	// set.
	Insertions    []int `json:"insertions,omitempty"`
	Deletions     []int `json:"deletions,omitempty"`
	Modifications []int `json:"modifications,omitempty"`

	// Keys renders the collection contents when the notification fired.
	Keys  []string `json:"keys,omitempty"`
	Error string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass is true when every assertion held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures.
	Errors []string `json:"errors,omitempty"`

	// Final maps each subscription to the collection contents after the
	// last step.
	Final map[string][]string `json:"final,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string][]string),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStepTrace records the start of a step.
func (r *Result) AddStepTrace(step int, action string) {
	r.Trace = append(r.Trace, TraceEvent{
		Type:   EventStep,
		Seq:    r.nextSeq(),
		Step:   step,
		Action: action,
	})
}

// AddNotificationTrace records a delivered notification.
func (r *Result) AddNotificationTrace(ev TraceEvent) {
	ev.Type = EventNotification
	ev.Seq = r.nextSeq()
	r.Trace = append(r.Trace, ev)
}

// Notifications returns the notification events of one subscription in
// delivery order.
func (r *Result) Notifications(subscription string) []TraceEvent {
	var out []TraceEvent
	for _, ev := range r.Trace {
		if ev.Type == EventNotification && ev.Subscription == subscription {
			out = append(out, ev)
		}
	}
	return out
}

func (r *Result) nextSeq() int64 {
	return int64(len(r.Trace) + 1)
}
