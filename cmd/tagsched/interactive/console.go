// Package interactive provides the interactive console for tagsched.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/mash-protocol/tagsched/pkg/persistence"
	"github.com/mash-protocol/tagsched/pkg/service"
	"github.com/mash-protocol/tagsched/pkg/tag"
)

// Console handles interactive mode for tagsched.
type Console struct {
	srv       *service.DataServer
	catalog   *tag.Catalog
	rl        *readline.Instance
	out       io.Writer
	snapshots *persistence.SnapshotStore

	// session is the current session; commands open one on demand.
	session string
}

// New creates a console. Attach must be called before Run.
func New(catalog *tag.Catalog) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tagsched> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete:    completer(catalog),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Console{catalog: catalog, rl: rl, out: rl.Stdout()}, nil
}

func completer(catalog *tag.Catalog) readline.AutoCompleter {
	var tags []readline.PrefixCompleterInterface
	for _, h := range catalog.Handles() {
		def, _ := catalog.Lookup(h)
		tags = append(tags, readline.PcItem(def.Name))
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("sub", tags...),
		readline.PcItem("ready", tags...),
		readline.PcItem("unsub", tags...),
		readline.PcItem("modify", tags...),
		readline.PcItem("discard", tags...),
		readline.PcItem("tag", tags...),
		readline.PcItem("intervals"),
		readline.PcItem("stats"),
		readline.PcItem("values"),
		readline.PcItem("sessions"),
		readline.PcItem("snapshot"),
		readline.PcItem("open"),
		readline.PcItem("close"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}

// Attach binds the console to a running server.
func (c *Console) Attach(srv *service.DataServer) {
	c.srv = srv
}

// SetSnapshotStore sets the default target of the snapshot command.
func (c *Console) SetSnapshotStore(store *persistence.SnapshotStore) {
	c.snapshots = store
}

// Stdout returns a writer that coordinates with the readline prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the readline prompt.
// Use it for log output.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Run starts the command loop. It returns on quit, EOF or ctx cancellation.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.out, "Exiting...")
			cancel()
			return
		}

		if !c.exec(line) {
			cancel()
			return
		}
	}
}

// exec runs one command line. It returns false on quit.
func (c *Console) exec(line string) bool {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	var err error
	switch cmd {
	case "help", "?":
		c.printHelp()
	case "open":
		c.cmdOpen()
	case "close":
		err = c.cmdClose(args)
	case "sessions":
		c.cmdSessions()
	case "sub", "s":
		err = c.cmdSubscribe(args)
	case "ready", "r":
		err = c.cmdReady(args)
	case "unsub", "u":
		err = c.cmdUnsubscribe(args)
	case "modify", "m":
		err = c.cmdModify(args)
	case "discard":
		err = c.cmdDiscard(args)
	case "intervals":
		c.cmdIntervals()
	case "tag", "t":
		err = c.cmdTag(args)
	case "stats":
		c.cmdStats()
	case "values", "v":
		c.cmdValues()
	case "snapshot":
		err = c.cmdSnapshot(args)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help')\n", cmd)
	}

	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprint(c.out, `
Commands:
  sub <tag@rate>...          Request subscriptions (pending until ready)
  ready <tag>...             Commit pending subscriptions
  unsub <tag@rate>...        Remove subscriptions
  modify <tag@old:new>...    Change subscription rates
  discard <tag@rate>...      Drop pending subscriptions
  intervals                  List active update intervals
  tag <tag>                  Show a tag's subscriptions
  values                     Show last values read
  stats                      Show server statistics
  snapshot [file]            Summarize and save scheduler state
  open | close | sessions    Manage sessions
  quit                       Exit

Rates are durations (250ms, 2s) or milliseconds (250).
`)
}

// current returns the current session, opening one if needed.
func (c *Console) current() string {
	if c.session == "" {
		c.cmdOpen()
	}
	return c.session
}

func (c *Console) cmdOpen() {
	c.session = c.srv.OpenSession()
	fmt.Fprintf(c.out, "Session %s\n", c.session)
}

func (c *Console) cmdClose(args []string) error {
	id := c.session
	if len(args) > 0 {
		id = args[0]
	}
	if id == "" {
		return errors.New("no session")
	}
	if err := c.srv.CloseSession(id); err != nil {
		return err
	}
	if id == c.session {
		c.session = ""
	}
	fmt.Fprintf(c.out, "Closed %s\n", id)
	return nil
}

func (c *Console) cmdSessions() {
	for _, id := range c.srv.Sessions() {
		marker := " "
		if id == c.session {
			marker = "*"
		}
		fmt.Fprintf(c.out, "%s %s\n", marker, id)
	}
}

func (c *Console) cmdSubscribe(args []string) error {
	handles, rates, err := parsePairs(c.catalog, args)
	if err != nil {
		return err
	}
	revised, ok, err := c.srv.Subscribe(c.current(), handles, rates)
	if err != nil {
		return err
	}
	for i, h := range handles {
		c.printResult(h, ok[i], "requested %s, rate %s (pending)", rates[i], revised[i])
	}
	return nil
}

func (c *Console) cmdReady(args []string) error {
	handles, err := parseHandles(c.catalog, args)
	if err != nil {
		return err
	}
	if err := c.srv.SubscribeReady(c.current(), handles); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Ready %d tag(s)\n", len(handles))
	return nil
}

func (c *Console) cmdUnsubscribe(args []string) error {
	handles, rates, err := parsePairs(c.catalog, args)
	if err != nil {
		return err
	}
	ok, err := c.srv.Unsubscribe(c.current(), handles, rates)
	if err != nil {
		return err
	}
	for i, h := range handles {
		c.printResult(h, ok[i], "unsubscribed at %s", rates[i])
	}
	return nil
}

func (c *Console) cmdModify(args []string) error {
	handles, olds, news, err := parseTriples(c.catalog, args)
	if err != nil {
		return err
	}
	revised, ok, err := c.srv.ModifySubscription(c.current(), handles, olds, news)
	if err != nil {
		return err
	}
	for i, h := range handles {
		c.printResult(h, ok[i], "%s -> %s", olds[i], revised[i])
	}
	return nil
}

func (c *Console) cmdDiscard(args []string) error {
	handles, rates, err := parsePairs(c.catalog, args)
	if err != nil {
		return err
	}
	ok, err := c.srv.DiscardPending(c.current(), handles, rates)
	if err != nil {
		return err
	}
	for i, h := range handles {
		c.printResult(h, ok[i], "discarded pending at %s", rates[i])
	}
	return nil
}

func (c *Console) cmdIntervals() {
	intervals := c.srv.ActiveIntervals()
	if len(intervals) == 0 {
		fmt.Fprintln(c.out, "No active intervals")
		return
	}
	l := c.srv.Locker()
	for _, iv := range intervals {
		l.Lock()
		handles := c.srv.Scheduler().HandlesAt(iv)
		size := c.srv.Scheduler().BucketSize(iv)
		l.Unlock()

		names := make([]string, len(handles))
		for i, h := range handles {
			names[i] = c.name(h)
		}
		fmt.Fprintf(c.out, "%10s  %d subscription(s): %s\n", iv, size, strings.Join(names, ", "))
	}
}

func (c *Console) cmdTag(args []string) error {
	if len(args) != 1 {
		return errors.New("usage: tag <tag>")
	}
	h, err := resolveTag(c.catalog, args[0])
	if err != nil {
		return err
	}
	st, ok := c.srv.TagState(h)
	if !ok {
		return fmt.Errorf("unknown tag %s", h)
	}
	fmt.Fprintf(c.out, "%s (handle %s) floor %s, %d subscription(s)\n",
		c.name(h), h, st.MinimumInterval(), st.Total())
	for _, r := range st.Rates() {
		fmt.Fprintf(c.out, "  %10s x%d\n", r, st.Count(r))
	}
	return nil
}

func (c *Console) cmdStats() {
	s := c.srv.Stats()
	fmt.Fprintf(c.out, "State:          %s\n", s.State)
	if !s.StartedAt.IsZero() {
		fmt.Fprintf(c.out, "Uptime:         %s\n", time.Since(s.StartedAt).Truncate(time.Second))
	}
	fmt.Fprintf(c.out, "Sessions:       %d\n", s.Sessions)
	fmt.Fprintf(c.out, "Subscriptions:  %d\n", s.Subscriptions)
	fmt.Fprintf(c.out, "Pending:        %d (reaped %d)\n", s.Pending, s.Reaped)
	fmt.Fprintf(c.out, "Intervals:      %v\n", s.ActiveIntervals)
	fmt.Fprintf(c.out, "Timers:         %v\n", s.Timers)
}

func (c *Console) cmdValues() {
	samples := c.srv.Dispatcher().Samples()
	if len(samples) == 0 {
		fmt.Fprintln(c.out, "No values read yet")
		return
	}
	handles := make([]tag.Handle, 0, len(samples))
	for h := range samples {
		handles = append(handles, h)
	}
	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })
	for _, h := range handles {
		s := samples[h]
		fmt.Fprintf(c.out, "%-16s %v  (every %s, read %s)\n",
			c.name(h), s.Value.Raw, s.Interval, s.ReadAt.Format(time.TimeOnly))
	}
}

func (c *Console) cmdSnapshot(args []string) error {
	snap := c.srv.Snapshot()
	fmt.Fprintf(c.out, "%d interval(s), %d subscription(s), %d pending\n",
		len(snap.Intervals), snap.Subscriptions(), len(snap.Pending))

	store := c.snapshots
	if len(args) > 0 {
		store = persistence.NewSnapshotStore(args[0])
	}
	if store == nil {
		return nil
	}
	if err := store.Save(snap); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "Saved %s\n", store.Path())
	return nil
}

func (c *Console) printResult(h tag.Handle, ok bool, format string, args ...any) {
	status := "OK  "
	if !ok {
		status = "FAIL"
	}
	fmt.Fprintf(c.out, "%s %-16s %s\n", status, c.name(h), fmt.Sprintf(format, args...))
}

func (c *Console) name(h tag.Handle) string {
	if def, ok := c.catalog.Lookup(h); ok {
		return def.Name
	}
	return "#" + h.String()
}
