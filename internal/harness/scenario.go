package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario is a scripted notification run: a schema, a set of subscribed
// collections and a sequence of steps that mutate the database.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario demonstrates.
	Description string `yaml:"description"`

	// Schema is the CUE object schema, relative to the scenario file.
	Schema string `yaml:"schema"`

	// Seed rows are committed before any subscription is installed.
	Seed []Op `yaml:"seed,omitempty"`

	Subscriptions []Subscription `yaml:"subscriptions"`

	Steps []Step `yaml:"steps"`

	// Assertions are checked against the finished trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Subscription names one observed collection. Exactly one of Objects,
// List, Set or Dictionary selects it.
type Subscription struct {
	Name string `yaml:"name"`

	// Objects is the object type of a results collection.
	Objects string      `yaml:"objects,omitempty"`
	Where   []Condition `yaml:"where,omitempty"`
	Sort    []SortKey   `yaml:"sort,omitempty"`

	List       *Owner `yaml:"list,omitempty"`
	Set        *Owner `yaml:"set,omitempty"`
	Dictionary *Owner `yaml:"dictionary,omitempty"`

	// KeyPaths restricts which property changes are observed.
	KeyPaths []string `yaml:"keypaths,omitempty"`

	// InitialChanges makes the first notification carry the changes made
	// between subscribing and the first delivery.
	InitialChanges bool `yaml:"initial_changes,omitempty"`
}

// Owner locates a collection property of one object.
type Owner struct {
	Type     string `yaml:"type"`
	Key      any    `yaml:"key"`
	Property string `yaml:"property"`
}

// Condition is one comparison of a results filter; conditions are ANDed.
type Condition struct {
	KeyPath string `yaml:"keypath"`
	Op      string `yaml:"op"`
	Value   any    `yaml:"value"`
}

// SortKey orders results.
type SortKey struct {
	KeyPath    string `yaml:"keypath"`
	Descending bool   `yaml:"descending,omitempty"`
}

// Step is one scenario action. Exactly one field is set.
type Step struct {
	// Write commits the ops on the observing connection.
	Write []Op `yaml:"write,omitempty"`

	// WriteElsewhere commits the ops on a second connection to the same
	// database; the observer sees them on its next refresh or write.
	WriteElsewhere []Op `yaml:"write_elsewhere,omitempty"`

	// Cancelled runs the ops in a write that is cancelled.
	Cancelled []Op `yaml:"cancelled,omitempty"`

	Refresh bool `yaml:"refresh,omitempty"`

	// SuppressNext and Invalidate name a subscription.
	SuppressNext string `yaml:"suppress_next,omitempty"`
	Invalidate   string `yaml:"invalidate,omitempty"`
}

// Action names the step kind for traces.
func (s Step) Action() string {
	switch {
	case len(s.Write) > 0:
		return "write"
	case len(s.WriteElsewhere) > 0:
		return "write_elsewhere"
	case len(s.Cancelled) > 0:
		return "cancelled"
	case s.Refresh:
		return "refresh"
	case s.SuppressNext != "":
		return "suppress_next"
	case s.Invalidate != "":
		return "invalidate"
	}
	return ""
}

func (s Step) actions() int {
	n := 0
	for _, set := range []bool{
		len(s.Write) > 0, len(s.WriteElsewhere) > 0, len(s.Cancelled) > 0,
		s.Refresh, s.SuppressNext != "", s.Invalidate != "",
	} {
		if set {
			n++
		}
	}
	return n
}

// Op is a single mutation. Put replaces the whole row; Delete removes the
// object with Key.
type Op struct {
	Put    string         `yaml:"put,omitempty"`
	Row    map[string]any `yaml:"row,omitempty"`
	Delete string         `yaml:"delete,omitempty"`
	Key    any            `yaml:"key,omitempty"`
}

// Assertion checks the finished trace of one subscription.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type         string `yaml:"type"`
	Subscription string `yaml:"subscription"`

	// Count is used by notification_count.
	Count int `yaml:"count,omitempty"`

	// Step selects the notification delivered during that step (1-based)
	// for changes.
	Step          int   `yaml:"step,omitempty"`
	Insertions    []int `yaml:"insertions,omitempty"`
	Deletions     []int `yaml:"deletions,omitempty"`
	Modifications []int `yaml:"modifications,omitempty"`

	// Keys is used by final_keys.
	Keys []string `yaml:"keys,omitempty"`
}

// Assertion type constants.
const (
	AssertNotificationCount = "notification_count"
	AssertChanges           = "changes"
	AssertFinalKeys         = "final_keys"
)

// LoadScenario reads and parses a scenario YAML file. Unknown fields are
// rejected and the schema path is resolved relative to the file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if s.Schema != "" && !filepath.IsAbs(s.Schema) {
		s.Schema = filepath.Join(filepath.Dir(path), s.Schema)
	}
	if _, err := os.Stat(s.Schema); err != nil {
		return nil, fmt.Errorf("invalid scenario: schema file not found: %s", s.Schema)
	}
	return s, nil
}

// ParseScenario decodes and validates scenario YAML. The schema path is
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var s Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &s, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Subscriptions) == 0 {
		return fmt.Errorf("subscriptions list is required and must be non-empty")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, op := range s.Seed {
		if err := op.Validate(); err != nil {
			return fmt.Errorf("seed[%d]: %w", i, err)
		}
	}

	names := make(map[string]bool, len(s.Subscriptions))
	for i, sub := range s.Subscriptions {
		if sub.Name == "" {
			return fmt.Errorf("subscriptions[%d]: name is required", i)
		}
		if names[sub.Name] {
			return fmt.Errorf("subscriptions[%d]: duplicate name %q", i, sub.Name)
		}
		names[sub.Name] = true
		if err := validateSubscription(sub); err != nil {
			return fmt.Errorf("subscriptions[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if n := step.actions(); n != 1 {
			return fmt.Errorf("steps[%d]: exactly one action is required, got %d", i, n)
		}
		for _, name := range []string{step.SuppressNext, step.Invalidate} {
			if name != "" && !names[name] {
				return fmt.Errorf("steps[%d]: unknown subscription %q", i, name)
			}
		}
		for _, ops := range [][]Op{step.Write, step.WriteElsewhere, step.Cancelled} {
			for j, op := range ops {
				if err := op.Validate(); err != nil {
					return fmt.Errorf("steps[%d].%s[%d]: %w", i, step.Action(), j, err)
				}
			}
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a, names, len(s.Steps)); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}
	return nil
}

func validateSubscription(sub Subscription) error {
	n := 0
	if sub.Objects != "" {
		n++
	}
	for _, o := range []*Owner{sub.List, sub.Set, sub.Dictionary} {
		if o == nil {
			continue
		}
		n++
		if o.Type == "" || o.Property == "" || o.Key == nil {
			return fmt.Errorf("owner needs type, key and property")
		}
	}
	if n != 1 {
		return fmt.Errorf("exactly one of objects, list, set or dictionary is required")
	}
	if sub.Objects == "" && (len(sub.Where) > 0 || len(sub.Sort) > 0) {
		return fmt.Errorf("where and sort apply to objects only")
	}
	for j, c := range sub.Where {
		if c.KeyPath == "" || c.Op == "" {
			return fmt.Errorf("where[%d]: keypath and op are required", j)
		}
	}
	for j, k := range sub.Sort {
		if k.KeyPath == "" {
			return fmt.Errorf("sort[%d]: keypath is required", j)
		}
	}
	return nil
}

// Validate checks that op is a well-formed put or delete.
func (op Op) Validate() error {
	switch {
	case op.Put != "" && op.Delete != "":
		return fmt.Errorf("put and delete are mutually exclusive")
	case op.Put != "":
		if op.Row == nil {
			return fmt.Errorf("put %s: row is required", op.Put)
		}
	case op.Delete != "":
		if op.Key == nil {
			return fmt.Errorf("delete %s: key is required", op.Delete)
		}
	default:
		return fmt.Errorf("put or delete is required")
	}
	return nil
}

func validateAssertion(a Assertion, names map[string]bool, steps int) error {
	if !names[a.Subscription] {
		return fmt.Errorf("unknown subscription %q", a.Subscription)
	}
	switch a.Type {
	case AssertNotificationCount:
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertChanges:
		if a.Step < 1 || a.Step > steps {
			return fmt.Errorf("step must be between 1 and %d", steps)
		}
	case AssertFinalKeys:
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}
