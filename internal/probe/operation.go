// Package probe holds the child side of a supervised probe: the invocation
// mode, the registry of risky operations, the runner that executes one of
// them and the marker protocol it reports through.
package probe

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultOperation is probed when nothing else is configured.
const DefaultOperation = "ecdh-p256"

// Operation is a single risky call whose outcome is being diagnosed.
//
// Available is the precondition oracle consulted once by the supervisor
// before anything is spawned. Run is invoked exactly once, in the child.
// Run may hang or crash the process; that is what is being measured.
type Operation interface {
	Available() bool
	Run(ctx context.Context) (string, error)
}

// ErrUnknownOperation is returned by Lookup for unregistered names.
type ErrUnknownOperation struct {
	Name string
}

func (e ErrUnknownOperation) Error() string {
	return fmt.Sprintf("unknown operation %q (available: %v)", e.Name, Names())
}

var (
	regMu    sync.RWMutex
	registry = map[string]Operation{}
)

// Register makes op available under name, replacing any previous entry.
func Register(name string, op Operation) {
	regMu.Lock()
	defer regMu.Unlock()
	registry[name] = op
}

// Lookup returns the operation registered under name.
func Lookup(name string) (Operation, error) {
	regMu.RLock()
	defer regMu.RUnlock()
	op, ok := registry[name]
	if !ok {
		return nil, ErrUnknownOperation{Name: name}
	}
	return op, nil
}

// Names returns the registered operation names in sorted order.
func Names() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Func adapts plain functions to Operation. A nil Avail means always available.
type Func struct {
	Avail func() bool
	Call  func(ctx context.Context) (string, error)
}

// Available implements Operation.
func (f Func) Available() bool {
	if f.Avail == nil {
		return true
	}
	return f.Avail()
}

// Run implements Operation.
func (f Func) Run(ctx context.Context) (string, error) {
	return f.Call(ctx)
}
