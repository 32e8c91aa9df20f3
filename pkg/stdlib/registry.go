// Package stdlib implements the builtin verbs: statement handlers selected
// by the token kind that starts them.
package stdlib

import (
	"sync"

	"github.com/lemonberrylabs/bigrun/pkg/token"
	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// Registry holds the builtin verbs and the state they keep between
// statements of one run. It satisfies runtime.VerbRegistry.
type Registry struct {
	mu    sync.RWMutex
	verbs map[token.Kind]types.Verb

	net    *netClient
	events *eventQueue
}

// NewRegistry creates a registry with every builtin verb registered.
func NewRegistry() *Registry {
	r := &Registry{
		verbs:  make(map[token.Kind]types.Verb),
		events: newEventQueue(),
	}
	r.registerSys()
	r.registerText()
	r.registerJSON()
	r.registerList()
	r.registerMapVerbs()
	r.registerEvents()
	r.registerGet()
	r.registerBooks()
	r.registerBit()
	r.registerSQL()
	r.registerDbig()
	r.registerPython()
	r.RegisterNet(nil)
	return r
}

// Lookup returns the verb selected by k.
func (r *Registry) Lookup(k token.Kind) (types.Verb, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.verbs[k]
	return v, ok
}

// Register binds a verb to the token kind that selects it, replacing any
// earlier binding.
func (r *Registry) Register(k token.Kind, v types.Verb) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verbs[k] = v
}

// Kinds returns the token kinds that select a verb.
func (r *Registry) Kinds() []token.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]token.Kind, 0, len(r.verbs))
	for k := range r.verbs {
		kinds = append(kinds, k)
	}
	return kinds
}
