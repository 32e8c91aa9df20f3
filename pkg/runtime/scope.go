package runtime

import (
	"log"
	"strings"
	"sync"

	"github.com/lemonberrylabs/bigrun/pkg/types"
)

// Store is the global variable map shared by every invocation of a run and
// by its background runs.
type Store struct {
	mu   sync.RWMutex
	vars map[string]string
}

// NewStore creates an empty global store.
func NewStore() *Store {
	return &Store{vars: make(map[string]string)}
}

// Get returns the value bound to name, trying the exact spelling first and
// then the lowercase one.
func (s *Store) Get(name string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return lookup(s.vars, name)
}

// Set binds name to value.
func (s *Store) Set(name, value string) {
	s.mu.Lock()
	s.vars[name] = value
	s.mu.Unlock()
}

// Delete removes name.
func (s *Store) Delete(name string) {
	s.mu.Lock()
	delete(s.vars, name)
	s.mu.Unlock()
}

// Snapshot returns a copy of every binding.
func (s *Store) Snapshot() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.vars))
	for k, v := range s.vars {
		out[k] = v
	}
	return out
}

func lookup(vars map[string]string, name string) (string, bool) {
	if v, ok := vars[name]; ok {
		return v, true
	}
	if lower := strings.ToLower(name); lower != name {
		if v, ok := vars[lower]; ok {
			return v, true
		}
	}
	return "", false
}

// globalNames are always written to the global store, even from inside a
// function invocation.
var globalNames = map[string]bool{
	"ReturnValue":        true,
	"Sbig_Response_Body": true,
	"Sbig_Response_File": true,
	"RequestBody":        true,
	"RequestPath":        true,
	"RequestMethod":      true,
	"RequestExtra":       true,
	"BugType":            true,
}

var globalSuffixes = []string{"Raw", "Content", "Layout", "Html", "Biew"}

func isGlobalName(name string) bool {
	if globalNames[name] {
		return true
	}
	for _, suffix := range globalSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// Get resolves a variable. Pseudo-variables come first, then the field
// form Obj.field, then local frames innermost first, then the global store.
// A missing name is not an error.
func (in *Interpreter) Get(name string) (string, bool) {
	if v, ok := in.pseudo(name); ok {
		return v, true
	}
	if parts := strings.Split(name, "."); len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		if obj, ok := in.Get(parts[0]); ok {
			if v, ok := types.ObjectField(obj, parts[1]); ok {
				return v, true
			}
		}
	}
	for k := len(in.locals) - 1; k >= 0; k-- {
		if v, ok := lookup(in.locals[k], name); ok {
			return v, true
		}
	}
	return in.globals.Get(name)
}

func (in *Interpreter) pseudo(name string) (string, bool) {
	switch strings.ToLower(name) {
	case "bigtick":
		return types.FormatNumber(float64(in.Tick())), true
	case "bigdelta":
		return types.FormatNumber(in.FrameDelta()), true
	case "mousex", "mousey", "dragx", "dragy":
		// No pointer source exists outside a window loop.
		return "0", true
	}
	return "", false
}

// Set binds a variable in the innermost local frame, or in the global store
// at top level. Names reserved for request and response state always go to
// the global store.
func (in *Interpreter) Set(name, value string) {
	if strings.EqualFold(name, "returnvalue") {
		name = "ReturnValue"
	}
	in.watch(name, value)
	if len(in.locals) == 0 || isGlobalName(name) {
		in.globals.Set(name, value)
		return
	}
	in.locals[len(in.locals)-1][name] = value
}

// SetGlobal binds name in the global store regardless of the current scope.
func (in *Interpreter) SetGlobal(name, value string) {
	in.globals.Set(name, value)
}

// Globals returns a snapshot of the global store.
func (in *Interpreter) Globals() map[string]string {
	return in.globals.Snapshot()
}

func (in *Interpreter) pushScope(vars map[string]string) {
	in.locals = append(in.locals, vars)
}

func (in *Interpreter) popScope() {
	if len(in.locals) > 0 {
		in.locals = in.locals[:len(in.locals)-1]
	}
}

// watch logs variable changes when debugging is on.
func (in *Interpreter) watch(name, value string) {
	if !in.debugging() {
		return
	}
	if old, ok := in.Get(name); ok {
		if old != value {
			log.Printf("[DEBUG] %s changed: '%s' -> '%s'", name, old, value)
		}
		return
	}
	log.Printf("[DEBUG] %s created: '%s'", name, value)
}

func (in *Interpreter) debugging() bool {
	if in.debug {
		return true
	}
	v, _ := in.globals.Get("BigDebug")
	return v == "true" || v == "1"
}
