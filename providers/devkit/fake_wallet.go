package devkit

import (
	"context"
	"sync"

	"github.com/goliatone/go-wallets/core"
)

// Emitter keeps listener references per event. Off removes the exact
// reference passed to On.
type Emitter struct {
	mu        sync.Mutex
	listeners map[core.EventKind][]*core.Listener
}

func (e *Emitter) On(kind core.EventKind, listener *core.Listener) {
	if listener == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listeners == nil {
		e.listeners = map[core.EventKind][]*core.Listener{}
	}
	e.listeners[kind] = append(e.listeners[kind], listener)
}

func (e *Emitter) Off(kind core.EventKind, listener *core.Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	current := e.listeners[kind]
	for index, candidate := range current {
		if candidate == listener {
			e.listeners[kind] = append(current[:index:index], current[index+1:]...)
			return
		}
	}
}

// Emit notifies a snapshot of the listeners outside the lock, so listeners
// may call On or Off.
func (e *Emitter) Emit(kind core.EventKind, key *core.PublicKey) {
	e.mu.Lock()
	listeners := append([]*core.Listener(nil), e.listeners[kind]...)
	e.mu.Unlock()
	for _, listener := range listeners {
		listener.Notify(key)
	}
}

func (e *Emitter) ListenerCount(kind core.EventKind) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.listeners[kind])
}

type Marker string

const (
	MarkerPhantom     Marker = "phantom"
	MarkerBackpack    Marker = "backpack"
	MarkerTrustWallet Marker = "trust"
	MarkerGlow        Marker = "glow"
)

// FakeWallet is a scriptable wallet handle. It answers every provider marker
// check, returning true only for the markers it was built with.
type FakeWallet struct {
	Emitter

	mu          sync.Mutex
	markers     map[Marker]bool
	key         *core.PublicKey
	connectErr  error
	connectGate <-chan struct{}
	connects    int
	disconnects int
}

type FakeWalletOption func(*FakeWallet)

func WithMarkers(markers ...Marker) FakeWalletOption {
	return func(w *FakeWallet) {
		for _, marker := range markers {
			w.markers[marker] = true
		}
	}
}

func WithKey(key *core.PublicKey) FakeWalletOption {
	return func(w *FakeWallet) {
		w.key = core.CloneKey(key)
	}
}

func WithConnectError(err error) FakeWalletOption {
	return func(w *FakeWallet) {
		w.connectErr = err
	}
}

// WithConnectGate makes Connect block until gate is closed or the context
// ends.
func WithConnectGate(gate <-chan struct{}) FakeWalletOption {
	return func(w *FakeWallet) {
		w.connectGate = gate
	}
}

func NewFakeWallet(opts ...FakeWalletOption) *FakeWallet {
	wallet := &FakeWallet{markers: map[Marker]bool{}}
	for _, opt := range opts {
		if opt != nil {
			opt(wallet)
		}
	}
	return wallet
}

func (w *FakeWallet) IsPhantom() bool     { return w.hasMarker(MarkerPhantom) }
func (w *FakeWallet) IsBackpack() bool    { return w.hasMarker(MarkerBackpack) }
func (w *FakeWallet) IsTrustWallet() bool { return w.hasMarker(MarkerTrustWallet) }
func (w *FakeWallet) IsGlow() bool        { return w.hasMarker(MarkerGlow) }

func (w *FakeWallet) hasMarker(marker Marker) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.markers[marker]
}

func (w *FakeWallet) Connect(ctx context.Context) (*core.PublicKey, error) {
	w.mu.Lock()
	w.connects++
	gate := w.connectGate
	w.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.connectErr != nil {
		return nil, w.connectErr
	}
	return core.CloneKey(w.key), nil
}

// Disconnect clears the key and emits a disconnect event.
func (w *FakeWallet) Disconnect(context.Context) error {
	w.mu.Lock()
	w.disconnects++
	w.key = nil
	w.mu.Unlock()
	w.Emit(core.EventDisconnect, nil)
	return nil
}

func (w *FakeWallet) PublicKey() *core.PublicKey {
	w.mu.Lock()
	defer w.mu.Unlock()
	return core.CloneKey(w.key)
}

func (w *FakeWallet) SetKey(key *core.PublicKey) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.key = core.CloneKey(key)
}

func (w *FakeWallet) SetConnectError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connectErr = err
}

// SwitchAccount mimics the user selecting another account in the wallet.
// A nil key reports an account that is not connected to the site yet.
func (w *FakeWallet) SwitchAccount(key *core.PublicKey) {
	w.SetKey(key)
	w.Emit(core.EventAccountChanged, key)
}

// ConnectWith sets the key and emits a connect event carrying it.
func (w *FakeWallet) ConnectWith(key *core.PublicKey) {
	w.SetKey(key)
	w.Emit(core.EventConnect, key)
}

func (w *FakeWallet) Connects() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connects
}

func (w *FakeWallet) Disconnects() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disconnects
}

var _ core.Handle = (*FakeWallet)(nil)
