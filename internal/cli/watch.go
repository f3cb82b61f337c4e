package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/livecoll/internal/config"
	"github.com/roach88/livecoll/internal/dispatch"
	"github.com/roach88/livecoll/internal/harness"
	"github.com/roach88/livecoll/internal/live"
	"github.com/roach88/livecoll/internal/logging"
	"github.com/roach88/livecoll/internal/metrics"
)

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Sort        string
	Descending  bool
	KeyPaths    []string
	MetricsAddr string
}

// WatchEvent is one line of JSON watch output.
type WatchEvent struct {
	Kind          string `json:"kind"` // "initial" or "changes"
	Type          string `json:"type"`
	Count         int    `json:"count"`
	Insertions    []int  `json:"insertions,omitempty"`
	Deletions     []int  `json:"deletions,omitempty"`
	Modifications []int  `json:"modifications,omitempty"`
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <type>",
		Short: "Subscribe to a type and print change sets",
		Long: `Subscribe to the results collection of a type on a dispatch queue and
print every change set until interrupted or stdin ends.

Each stdin line is a mutation committed from a second connection:
  {"put": "Person", "row": {"id": "p1", "name": "Ann", "age": 30}}
  {"delete": "Person", "key": "p1"}

Commits the watcher has not seen yet are coalesced into one change set.

Example:
  livecoll watch Person --sort age --metrics-addr :9464 --db people.db --schema people.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort by keypath")
	cmd.Flags().BoolVar(&opts.Descending, "desc", false, "sort descending")
	cmd.Flags().StringSliceVar(&opts.KeyPaths, "keypath", nil, "only report changes to these keypaths (repeatable)")
	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve prometheus metrics on this address")

	return cmd
}

func runWatch(opts *WatchOptions, objType string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeConfig, "invalid configuration", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if opts.MetricsAddr != "" {
		srv := serveMetrics(opts.MetricsAddr)
		defer srv.Close()
	}

	q := dispatch.New("watch")
	defer q.Stop()

	w := &watcher{out: cmd.OutOrStdout(), json: opts.Format == "json", objType: objType}
	var startErr error
	q.Sync(func() { startErr = w.start(ctx, cfg, opts) })
	if startErr != nil {
		return f.Fail(ExitCommandError, ErrCodeInput, "failed to subscribe", startErr)
	}
	defer q.Sync(w.stop)

	writer, err := live.Open(ctx, cfg)
	if err != nil {
		return f.Fail(ExitCommandError, ErrCodeDatabase, "failed to open database", err)
	}
	defer writer.Close()

	lines := make(chan string)
	go scanLines(ctx, cmd.InOrStdin(), lines)
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				// commits already queued their refresh; wait for it
				q.Sync(func() {})
				return nil
			}
			if err := commitLine(ctx, writer, line); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %q: %v\n", line, err)
			}
		}
	}
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Logger.Warnw("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logging.Logger.Infow("serving metrics", "addr", addr)
	return srv
}

func scanLines(ctx context.Context, r io.Reader, out chan<- string) {
	defer close(out)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		select {
		case out <- line:
		case <-ctx.Done():
			return
		}
	}
}

// commitLine decodes one mutation (JSON, or any YAML flow mapping) and
// commits it.
func commitLine(ctx context.Context, c *live.Connection, line string) error {
	var op harness.Op
	dec := yaml.NewDecoder(bytes.NewReader([]byte(line)))
	dec.KnownFields(true)
	if err := dec.Decode(&op); err != nil {
		return errors.Wrap(err, "decode mutation")
	}
	if err := op.Validate(); err != nil {
		return err
	}
	return c.Write(ctx, func() error { return harness.Apply(c, []harness.Op{op}) })
}

// watcher owns the subscribed connection. Its methods run on the watch
// queue, which is also the only writer of out.
type watcher struct {
	out     io.Writer
	json    bool
	objType string

	conn  *live.Connection
	token *live.Token
	seen  int
}

func (w *watcher) start(ctx context.Context, cfg config.Config, opts *WatchOptions) error {
	conn, err := live.Open(ctx, cfg)
	if err != nil {
		return err
	}
	var qopts []live.QueryOption
	if opts.Sort != "" {
		qopts = append(qopts, live.SortBy(opts.Sort, opts.Descending))
	}
	coll, err := conn.Objects(w.objType, qopts...)
	if err != nil {
		_ = conn.Close()
		return err
	}
	token, err := coll.Subscribe(w.notify, live.WithKeyPaths(opts.KeyPaths...))
	if err != nil {
		_ = conn.Close()
		return err
	}
	w.conn, w.token = conn, token
	return nil
}

func (w *watcher) stop() {
	if w.conn == nil {
		return
	}
	w.token.Invalidate()
	_ = w.conn.Close()
}

func (w *watcher) notify(c *live.Collection, cs *live.ChangeSet, err error) {
	if err != nil {
		fmt.Fprintf(w.out, "error %s: %v\n", w.objType, err)
		return
	}
	w.seen++
	n, err := c.Count()
	if err != nil {
		logging.Logger.Warnw("watch count failed", "type", w.objType, "error", err)
	}

	ev := WatchEvent{Kind: "changes", Type: w.objType, Count: n}
	if w.seen == 1 {
		ev.Kind = "initial"
	}
	if cs != nil {
		ev.Insertions, ev.Deletions, ev.Modifications = cs.Insertions(), cs.Deletions(), cs.Modifications()
	}

	if w.json {
		_ = json.NewEncoder(w.out).Encode(ev)
		return
	}
	line := fmt.Sprintf("%s %s count=%d", ev.Kind, ev.Type, ev.Count)
	if cs != nil {
		line += fmt.Sprintf(" ins=%v del=%v mod=%v", orEmpty(ev.Insertions), orEmpty(ev.Deletions), orEmpty(ev.Modifications))
	}
	fmt.Fprintln(w.out, line)
}

func orEmpty(xs []int) []int {
	if xs == nil {
		return []int{}
	}
	return xs
}
