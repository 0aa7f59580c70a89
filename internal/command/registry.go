// Package command implements the global command registry, argv
// splitter, and safe/unsafe dispatcher described in spec §4.C8.
//
// Registration is process-global, order-independent, and idempotent:
// built-ins and host-registered commands alike call Register (directly
// or through MustRegister at package init() time), and no entry can
// later be removed. A command's kind tag lets a caller bulk-rebind the
// parameter every entry of that kind receives — this is how the engine
// hands its own EngineHooks to built-ins that were registered before it
// existed. KindClient entries instead receive the invoking
// *client.Client, substituted by the dispatcher at dispatch time.
package command

import (
	"sort"
	"strings"
	"sync"
)

// Kind tags used by mish's own built-ins; callers registering
// host commands may use any other uint32 value (0 means "ungrouped").
const (
	KindNone   uint32 = 0
	KindClient uint32 = 1
	KindEngine uint32 = 2
)

// Result is a handler's outcome. Output, when non-empty, is queued on the
// invoking client's own send buffer (other attached clients do not see
// it); Err is reported to that same client with an "ERROR:" prefix
// instead.
type Result struct {
	Output string
	Err    error
}

// HandlerFunc is a command's implementation. argv[0] is the name the
// caller actually typed (which alias matched).
type HandlerFunc func(param any, argv []string) Result

// Entry is one registered command.
type Entry struct {
	Names   []string
	Help    []string
	Handler HandlerFunc
	Param   any
	Safe    bool
	Kind    uint32
}

var (
	mu      sync.RWMutex
	entries []*Entry
	byAlias = map[string]*Entry{}
)

// Register adds a command. Calling Register again with a name already
// present anywhere in the table is a no-op (idempotent, not removable),
// matching spec §4.C8 exactly.
func Register(names []string, help []string, handler HandlerFunc, param any, safe bool, kind uint32) {
	mu.Lock()
	defer mu.Unlock()
	for _, n := range names {
		if _, exists := byAlias[n]; exists {
			return
		}
	}
	e := &Entry{Names: names, Help: help, Handler: handler, Param: param, Safe: safe, Kind: kind}
	entries = append(entries, e)
	for _, n := range names {
		byAlias[n] = e
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Names[0] < entries[j].Names[0]
	})
}

// MustRegister is Register, named for parity with the init()-time
// registration style the teacher's command tree uses; it never panics
// today (Register has no failure mode) but keeps the call sites reading
// like static command declarations.
func MustRegister(names []string, help []string, handler HandlerFunc, param any, safe bool, kind uint32) {
	Register(names, help, handler, param, safe, kind)
}

// SetParameter bulk-rebinds Param on every entry whose Kind matches kind
// (kind == KindNone rebinds every entry, per spec).
func SetParameter(kind uint32, param any) {
	mu.Lock()
	defer mu.Unlock()
	for _, e := range entries {
		if kind == KindNone || e.Kind == kind {
			e.Param = param
		}
	}
}

// Lookup resolves a typed token to an entry: an exact alias match wins
// immediately; failing that, the first (by sort order) entry with an
// alias having token as a prefix is returned, enabling unambiguous
// abbreviation ("he" -> "help").
func Lookup(token string) *Entry {
	mu.RLock()
	defer mu.RUnlock()
	if e, ok := byAlias[token]; ok {
		return e
	}
	for _, e := range entries {
		for _, n := range e.Names {
			if strings.HasPrefix(n, token) {
				return e
			}
		}
	}
	return nil
}

// List returns the registered entries in display (sorted) order. The
// returned slice is a snapshot; callers must not mutate it.
func List() []*Entry {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]*Entry, len(entries))
	copy(out, entries)
	return out
}
