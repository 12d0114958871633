package commands

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-wallets/core"
	"github.com/goliatone/go-wallets/providers"
	"github.com/goliatone/go-wallets/providers/backpack"
	"github.com/goliatone/go-wallets/providers/devkit"
	"github.com/goliatone/go-wallets/providers/glow"
	"github.com/goliatone/go-wallets/providers/phantom"
	"github.com/goliatone/go-wallets/providers/trust"
	"github.com/spf13/cobra"
)

// EventDetach clears the adapter descriptor in an adapter step.
const EventDetach = "detach"

// Step is one line of a replay script.
//
//	{"source":"phantom","event":"accountChanged","key":"<base58>"}
//	{"source":"glow","event":"accountChanged","wallet_key":"<base58>"}
//	{"source":"trust","event":"disconnect"}
//	{"delay_ms":500}
//	{"source":"external_key","key":"<base58>"}
//	{"source":"adapter","adapter":"Solflare","key":"<base58>"}
//	{"source":"adapter","event":"connect","key":"<base58>"}
type Step struct {
	Source       string `json:"source,omitempty"`
	Event        string `json:"event,omitempty"`
	Key          string `json:"key,omitempty"`
	WalletKey    string `json:"wallet_key,omitempty"`
	ConnectError string `json:"connect_error,omitempty"`
	Adapter      string `json:"adapter,omitempty"`
	DelayMS      int    `json:"delay_ms,omitempty"`

	line      int
	key       *core.PublicKey
	walletKey *core.PublicKey
}

var injectedSources = map[core.SourceID]devkit.Marker{
	core.SourcePhantom:  devkit.MarkerPhantom,
	core.SourceBackpack: devkit.MarkerBackpack,
	core.SourceTrust:    devkit.MarkerTrustWallet,
	core.SourceGlow:     devkit.MarkerGlow,
}

var injectedPaths = map[core.SourceID]string{
	core.SourcePhantom:  phantom.EnvironmentPath,
	core.SourceBackpack: backpack.EnvironmentPath,
	core.SourceTrust:    trust.EnvironmentPath,
	core.SourceGlow:     glow.EnvironmentPath,
}

// ParseScript reads JSONL steps. Blank lines and lines starting with # are
// skipped.
func ParseScript(r io.Reader) ([]Step, error) {
	scanner := bufio.NewScanner(r)
	var steps []Step
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		var step Step
		decoder := json.NewDecoder(strings.NewReader(line))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&step); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		step.line = lineNo
		if err := step.normalize(); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		steps = append(steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return steps, nil
}

func (s *Step) normalize() error {
	if s.DelayMS < 0 {
		return errors.New("delay_ms must not be negative")
	}
	var err error
	if s.key, err = parseOptionalKey(s.Key); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	if s.walletKey, err = parseOptionalKey(s.WalletKey); err != nil {
		return fmt.Errorf("wallet_key: %w", err)
	}

	source := core.NormalizeSourceID(s.Source)
	s.Source = source.String()
	switch {
	case source == "":
		if s.Event != "" || s.Key != "" || s.Adapter != "" {
			return errors.New("source is required")
		}
		if s.DelayMS == 0 {
			return errors.New("empty step")
		}
	case source == core.SourceExternalKey:
		if s.Event != "" {
			return errors.New("external_key steps take no event")
		}
	case source == core.SourceAdapter:
		switch s.Event {
		case "", EventDetach, string(core.EventConnect), string(core.EventDisconnect):
		default:
			return fmt.Errorf("unsupported adapter event %q", s.Event)
		}
		if s.Event == "" && strings.TrimSpace(s.Adapter) == "" {
			return errors.New("adapter steps need an adapter name or an event")
		}
	default:
		if _, ok := injectedSources[source]; !ok {
			return fmt.Errorf("unknown source %q", s.Source)
		}
		if !core.EventKind(s.Event).Valid() {
			return fmt.Errorf("unsupported event %q", s.Event)
		}
	}
	return nil
}

func parseOptionalKey(raw string) (*core.PublicKey, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	key, err := core.ParsePublicKey(raw)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

// Replayer drives a service built over fake wallets. Time only moves through
// delay steps.
type Replayer struct {
	app     *App
	out     io.Writer
	clock   *core.ManualClock
	env     *devkit.Environment
	wallets map[core.SourceID]*devkit.FakeWallet
	adapter *devkit.FakeWallet
	service *core.Service
}

func NewReplayer(app *App, out io.Writer) *Replayer {
	if out == nil {
		out = io.Discard
	}
	r := &Replayer{
		app:     app,
		out:     &lockedWriter{w: out},
		clock:   core.NewManualClock(time.Now().UTC()),
		env:     devkit.NewEnvironment(),
		wallets: map[core.SourceID]*devkit.FakeWallet{},
	}
	for source, marker := range injectedSources {
		wallet := devkit.NewFakeWallet(devkit.WithMarkers(marker))
		r.wallets[source] = wallet
		r.env.Set(injectedPaths[source], wallet)
	}
	return r
}

// Outcome is the service state once every step has been applied. Clears
// still inside their debounce window are listed in PendingClear; Active has
// not been cleared for them yet.
type Outcome struct {
	Active       *core.PublicKey
	PendingClear []core.SourceID
}

func (o Outcome) String() string {
	line := "active: " + displayKey(o.Active)
	if len(o.PendingClear) == 0 {
		return line
	}
	sources := make([]string, 0, len(o.PendingClear))
	for _, source := range o.PendingClear {
		sources = append(sources, source.String())
	}
	return line + " (pending clear: " + strings.Join(sources, ", ") + ")"
}

func (r *Replayer) Run(ctx context.Context, steps []Step) (Outcome, error) {
	detectors, err := providers.Build(phantom.Factory, backpack.Factory, trust.Factory, glow.Factory)
	if err != nil {
		return Outcome{}, err
	}
	opts := []core.Option{
		core.WithLoggerProvider(r.app.Loggers),
		core.WithKeyValueStore(r.app.Store),
		core.WithDetectors(detectors...),
		core.WithEnvironment(r.env),
		core.WithClock(r.clock),
		core.WithErrorReporter(func(_ context.Context, source core.SourceID, err error) {
			fmt.Fprintf(r.out, "  error %s: %v\n", source, err)
		}),
		core.WithChangeHook(core.NewChangeHook("walletctl_trace", func(_ context.Context, change core.Change) error {
			fmt.Fprintf(r.out, "  %s via %s (%s): %s -> %s\n",
				change.Reason, change.Source, change.At.Format(time.RFC3339Nano),
				displayKey(change.Previous), displayKey(change.Current))
			return nil
		})),
	}
	if r.app.Journal != nil {
		opts = append(opts, core.WithChangeHook(r.app.Journal))
	}

	service, err := core.NewService(r.app.Config, opts...)
	if err != nil {
		return Outcome{}, err
	}
	r.service = service
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = service.Close(closeCtx)
	}()

	if err := service.Start(ctx); err != nil {
		return Outcome{}, err
	}
	fmt.Fprintf(r.out, "start: %s\n", displayKey(activeKey(service)))

	for _, step := range steps {
		fmt.Fprintf(r.out, "line %d: %s\n", step.line, step.describe())
		if err := r.apply(ctx, step); err != nil {
			return Outcome{}, fmt.Errorf("line %d: %w", step.line, err)
		}
		if err := service.WaitReconnects(ctx); err != nil {
			return Outcome{}, fmt.Errorf("line %d: %w", step.line, err)
		}
	}
	snap := service.Snapshot()
	return Outcome{Active: snap.Active, PendingClear: snap.PendingClear}, nil
}

func (r *Replayer) apply(ctx context.Context, step Step) error {
	if step.DelayMS > 0 {
		r.clock.Advance(time.Duration(step.DelayMS) * time.Millisecond)
	}
	source := core.SourceID(step.Source)
	switch source {
	case "":
		return nil
	case core.SourceExternalKey:
		return r.service.SetExternalKey(ctx, step.key)
	case core.SourceAdapter:
		return r.applyAdapter(ctx, step)
	}

	wallet := r.wallets[source]
	if step.walletKey != nil {
		wallet.SetKey(step.walletKey)
	}
	if step.ConnectError != "" {
		wallet.SetConnectError(errors.New(step.ConnectError))
	} else {
		wallet.SetConnectError(nil)
	}
	wallet.Emit(core.EventKind(step.Event), step.key)
	return nil
}

func (r *Replayer) applyAdapter(ctx context.Context, step Step) error {
	if name := strings.TrimSpace(step.Adapter); name != "" {
		r.adapter = devkit.NewFakeWallet(devkit.WithKey(step.key))
		if err := r.service.SetAdapter(ctx, providers.Adapter(name, r.adapter)); err != nil {
			return err
		}
		if step.Event == "" {
			return nil
		}
	}
	if step.Event == EventDetach {
		r.adapter = nil
		return r.service.SetAdapter(ctx, nil)
	}
	if r.adapter == nil {
		return errors.New("no adapter attached")
	}
	switch core.EventKind(step.Event) {
	case core.EventConnect:
		if step.key != nil {
			r.adapter.SetKey(step.key)
		}
		r.adapter.Emit(core.EventConnect, nil)
	case core.EventDisconnect:
		r.adapter.Emit(core.EventDisconnect, nil)
	}
	return nil
}

func (s Step) describe() string {
	parts := []string{}
	if s.DelayMS > 0 {
		parts = append(parts, fmt.Sprintf("+%dms", s.DelayMS))
	}
	if s.Source != "" {
		parts = append(parts, s.Source)
	}
	if s.Adapter != "" {
		parts = append(parts, "adapter="+s.Adapter)
	}
	if s.Event != "" {
		parts = append(parts, s.Event)
	}
	if s.key != nil {
		parts = append(parts, "key="+s.key.String())
	}
	if s.walletKey != nil {
		parts = append(parts, "wallet_key="+s.walletKey.String())
	}
	if s.ConnectError != "" {
		parts = append(parts, "connect_error="+s.ConnectError)
	}
	return strings.Join(parts, " ")
}

func activeKey(service *core.Service) *core.PublicKey {
	key, ok := service.ActiveIdentity()
	if !ok {
		return nil
	}
	return &key
}

func displayKey(key *core.PublicKey) string {
	if key == nil {
		return "none"
	}
	return key.String()
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func replayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <script.jsonl>",
		Short: "Replay wallet events against fake providers and print the final identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer file.Close()
				in = file
			}
			steps, err := ParseScript(in)
			if err != nil {
				return err
			}
			outcome, err := NewReplayer(appCtx, cmd.OutOrStdout()).Run(cmd.Context(), steps)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome.String())
			return nil
		},
	}
}
