package harness

import (
	"context"
	"fmt"

	"github.com/cockroachdb/errors"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/ir"
	"github.com/roach88/livecoll/internal/live"
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/objectstore"
	"github.com/roach88/livecoll/internal/schema"
	"github.com/roach88/livecoll/internal/testutil"
)

// Harness runs one scenario. All connections are unbound, so every
// notification is delivered synchronously on the running goroutine and
// the trace order is deterministic.
type Harness struct {
	cfg    config.Config
	conn   *live.Connection
	writer *live.Connection
	subs   map[string]*observed
	order  []string
	result *Result
	step   int
}

// databaseIDs gives every run its own in-memory database, including
// repeated runs of one scenario.
var databaseIDs = testutil.NewSequentialIDs("scenario")

type observed struct {
	def   Subscription
	coll  *live.Collection
	token *live.Token
	seen  int
}

// Run executes a scenario against a fresh in-memory database.
//
// Execution flow:
//  1. Compile the schema and open the observing connection
//  2. Commit the seed rows
//  3. Subscribe; initial notifications arrive with the first step that
//     delivers (a write on the observer or a refresh)
//  4. Run each step, recording notifications as they are delivered
//  5. Record final contents and evaluate assertions
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	sch, err := schema.CompileFile(s.Schema)
	if err != nil {
		return nil, errors.Wrapf(err, "scenario %s", s.Name)
	}

	h := &Harness{
		cfg:    config.InMemory(databaseIDs.Generate()+"-"+s.Name, sch),
		subs:   make(map[string]*observed, len(s.Subscriptions)),
		result: NewResult(),
	}
	h.conn, err = live.Open(ctx, h.cfg)
	if err != nil {
		return nil, err
	}
	defer h.close()

	if len(s.Seed) > 0 {
		if err := h.conn.Write(ctx, func() error { return Apply(h.conn, s.Seed) }); err != nil {
			return nil, errors.Wrap(err, "seed")
		}
	}

	for _, def := range s.Subscriptions {
		if err := h.subscribe(def); err != nil {
			return nil, errors.Wrapf(err, "subscription %s", def.Name)
		}
	}
	for i, step := range s.Steps {
		h.step = i + 1
		h.result.AddStepTrace(h.step, step.Action())
		logging.Logger.Debugw("scenario step", "scenario", s.Name, "step", h.step, "action", step.Action())
		if err := h.run(ctx, step); err != nil {
			return nil, errors.Wrapf(err, "step %d (%s)", h.step, step.Action())
		}
	}

	for _, name := range h.order {
		o := h.subs[name]
		if o.coll.IsValid() {
			h.result.Final[name] = h.keys(o.coll)
		}
	}

	for _, a := range s.Assertions {
		if err := evaluate(h.result, a); err != nil {
			h.result.AddError(err.Error())
		}
	}
	return h.result, nil
}

func (h *Harness) close() {
	if h.writer != nil {
		_ = h.writer.Close()
	}
	_ = h.conn.Close()
}

func (h *Harness) subscribe(def Subscription) error {
	coll, err := h.collection(def)
	if err != nil {
		return err
	}
	o := &observed{def: def, coll: coll}

	opts := []live.SubscribeOption{live.WithKeyPaths(def.KeyPaths...)}
	if def.InitialChanges {
		opts = append(opts, live.WithInitialChanges())
	}
	o.token, err = coll.Subscribe(func(c *live.Collection, cs *live.ChangeSet, err error) {
		h.record(o, c, cs, err)
	}, opts...)
	if err != nil {
		return err
	}
	h.subs[def.Name] = o
	h.order = append(h.order, def.Name)
	return nil
}

func (h *Harness) collection(def Subscription) (*live.Collection, error) {
	switch {
	case def.List != nil:
		return h.rooted(h.conn.List, def.List)
	case def.Set != nil:
		return h.rooted(h.conn.Set, def.Set)
	case def.Dictionary != nil:
		return h.rooted(h.conn.Dictionary, def.Dictionary)
	}

	var opts []live.QueryOption
	for _, c := range def.Where {
		op, err := objectstore.ParseCompareOp(c.Op)
		if err != nil {
			return nil, err
		}
		v, err := ir.FromAny(c.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "where %s", c.KeyPath)
		}
		opts = append(opts, live.Where(objectstore.Compare{KeyPath: c.KeyPath, Op: op, Value: v}))
	}
	for _, k := range def.Sort {
		opts = append(opts, live.SortBy(k.KeyPath, k.Descending))
	}
	return h.conn.Objects(def.Objects, opts...)
}

func (h *Harness) rooted(open func(string, ir.IRValue, string) (*live.Collection, error), o *Owner) (*live.Collection, error) {
	key, err := ir.FromAny(o.Key)
	if err != nil {
		return nil, errors.Wrap(err, "owner key")
	}
	return open(o.Type, key, o.Property)
}

func (h *Harness) run(ctx context.Context, step Step) error {
	switch {
	case len(step.Write) > 0:
		return h.conn.Write(ctx, func() error { return Apply(h.conn, step.Write) })

	case len(step.WriteElsewhere) > 0:
		if h.writer == nil {
			w, err := live.Open(ctx, h.cfg)
			if err != nil {
				return err
			}
			h.writer = w
		}
		return h.writer.Write(ctx, func() error { return Apply(h.writer, step.WriteElsewhere) })

	case len(step.Cancelled) > 0:
		if err := h.conn.BeginWrite(ctx); err != nil {
			return err
		}
		if err := Apply(h.conn, step.Cancelled); err != nil {
			_ = h.conn.CancelWrite()
			return err
		}
		return h.conn.CancelWrite()

	case step.Refresh:
		_, err := h.conn.Refresh()
		return err

	case step.SuppressNext != "":
		h.subs[step.SuppressNext].token.SuppressNext()
		return nil

	case step.Invalidate != "":
		h.subs[step.Invalidate].token.Invalidate()
		return nil
	}
	return fmt.Errorf("empty step")
}

// Apply runs ops inside c's open write.
func Apply(c *live.Connection, ops []Op) error {
	for _, op := range ops {
		if op.Put != "" {
			row, err := ir.FromAny(op.Row)
			if err != nil {
				return errors.Wrapf(err, "put %s", op.Put)
			}
			if err := c.Put(op.Put, row.(ir.IRObject)); err != nil {
				return err
			}
			continue
		}
		key, err := ir.FromAny(op.Key)
		if err != nil {
			return errors.Wrapf(err, "delete %s", op.Delete)
		}
		if err := c.Delete(op.Delete, key); err != nil {
			return err
		}
	}
	return nil
}

func (h *Harness) record(o *observed, c *live.Collection, cs *live.ChangeSet, err error) {
	o.seen++
	ev := TraceEvent{Step: h.step, Subscription: o.def.Name}
	switch {
	case err != nil:
		ev.Kind = KindError
		ev.Error = err.Error()
	case o.seen == 1:
		ev.Kind = KindInitial
	default:
		ev.Kind = KindChanges
	}
	if cs != nil {
		ev.Insertions = orEmpty(cs.Insertions())
		ev.Deletions = orEmpty(cs.Deletions())
		ev.Modifications = orEmpty(cs.Modifications())
	}
	if c.IsValid() {
		ev.Keys = h.keys(c)
	}
	h.result.AddNotificationTrace(ev)
}

// keys renders collection contents: object keys, primitive values, and
// "key=value" for dictionaries.
func (h *Harness) keys(c *live.Collection) []string {
	out := []string{}
	for e, err := range c.All() {
		if err != nil {
			logging.Logger.Warnw("scenario enumeration failed", "collection", c.TypeName(), "error", err)
			return out
		}
		out = append(out, renderElement(c.Kind(), e))
	}
	return out
}

func renderElement(kind objectstore.Kind, e live.Element) string {
	if kind == objectstore.KindDictionary {
		return ir.String(e.Value) + "=" + ir.String(e.Mapped)
	}
	if e.Object != nil {
		return ir.String(e.Object.Key())
	}
	return ir.String(e.Value)
}
