// Package registry implements the per-process table of applications and
// their registered contexts, each carrying a cached log level and trace
// status the daemon can update asynchronously.
package registry

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/minminlittleshrimp/mct-go/internal/wire"
)

// cellChunkSize is the allocation granularity for the cache-cell array;
// growing in chunks avoids a reallocation on every registered context.
const cellChunkSize = 500

// CacheCell is the two-byte value the housekeeper updates under the
// registry lock and producers read without it. A reader racing a write
// may observe a transient mix of old and new bytes; the window is
// bounded to the two individual field writes below and self-heals on the
// next read (spec §5, "Cache cells").
type CacheCell struct {
	Level       int8
	TraceStatus int8
}

// Context is one registered logging context within an application.
type Context struct {
	Ctid        wire.Id4
	Description string
	Pos         uint32 // index into the registry's cache-cell array
}

// App is one registered application and its contexts, ordered by
// registration time.
type App struct {
	Apid        wire.Id4
	Pid         int32
	Description string
	Contexts    []*Context
}

// Registry is the exclusive-under-lock table of apps/contexts plus the
// lock-free-read cache-cell array. All mutation (register/unregister,
// cache updates) takes mu; ReadLevel deliberately does not, matching the
// spec's "mct_mutex protects registry" / "readers may observe stale cache
// cells" contract.
type Registry struct {
	mu            sync.Mutex
	apps          map[wire.Id4]*App
	order         []wire.Id4 // registration order, for deterministic iteration
	cells         []CacheCell
	initialLevels map[string]initialLevel
}

type initialLevel struct {
	level       int8
	traceStatus int8
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{
		apps:          make(map[wire.Id4]*App),
		initialLevels: make(map[string]initialLevel),
	}
}

// ParseInitialLevels loads the MCT_INITIAL_LOG_LEVEL environment value,
// formatted "APID:CTID:level;APID:CTID:level;...". Malformed entries are
// skipped; this mirrors env parsing done once at init (spec §6).
func (r *Registry) ParseInitialLevels(env string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range strings.Split(env, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) != 3 {
			continue
		}
		level, err := strconv.Atoi(parts[2])
		if err != nil {
			continue
		}
		key := initialLevelKey(wire.NewId4(parts[0]), wire.NewId4(parts[1]))
		r.initialLevels[key] = initialLevel{level: int8(level), traceStatus: wire.TraceStatusDefault}
	}
}

func initialLevelKey(apid, ctid wire.Id4) string {
	return apid.String() + ":" + ctid.String()
}

// RegisterApp creates or refreshes an app entry, as register_application
// does on receipt of a register-app control frame.
func (r *Registry) RegisterApp(apid wire.Id4, pid int32, description string) *App {
	r.mu.Lock()
	defer r.mu.Unlock()
	if app, ok := r.apps[apid]; ok {
		app.Pid = pid
		app.Description = description
		return app
	}
	app := &App{Apid: apid, Pid: pid, Description: description}
	r.apps[apid] = app
	r.order = append(r.order, apid)
	return app
}

// UnregisterApp drops an app and every one of its contexts.
func (r *Registry) UnregisterApp(apid wire.Id4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.apps, apid)
	for i, id := range r.order {
		if id == apid {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *Registry) allocCell() uint32 {
	if len(r.cells) == cap(r.cells) {
		grown := make([]CacheCell, len(r.cells), cap(r.cells)+cellChunkSize)
		copy(grown, r.cells)
		r.cells = grown
	}
	r.cells = append(r.cells, CacheCell{})
	return uint32(len(r.cells) - 1)
}

// RegisterContext creates a context under apid, assigning it a fresh
// cache-cell position. The initial level is resolved in priority order:
// MCT_INITIAL_LOG_LEVEL override, then the caller-supplied default.
func (r *Registry) RegisterContext(apid, ctid wire.Id4, description string, defaultLevel, defaultTraceStatus int8) (*Context, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[apid]
	if !ok {
		return nil, fmt.Errorf("registry: app %q not registered", apid)
	}
	for _, c := range app.Contexts {
		if c.Ctid == ctid {
			return c, nil
		}
	}

	level, traceStatus := defaultLevel, defaultTraceStatus
	if initial, ok := r.initialLevels[initialLevelKey(apid, ctid)]; ok {
		level = initial.level
	}

	pos := r.allocCell()
	r.cells[pos] = CacheCell{Level: level, TraceStatus: traceStatus}

	ctx := &Context{Ctid: ctid, Description: description, Pos: pos}
	app.Contexts = append(app.Contexts, ctx)
	return ctx, nil
}

// UnregisterContext drops a single context from its app. The cache cell
// is left in place (positions are never reused within a process
// lifetime) so any in-flight reader sees a stable, if now orphaned, cell.
func (r *Registry) UnregisterContext(apid, ctid wire.Id4) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[apid]
	if !ok {
		return
	}
	for i, c := range app.Contexts {
		if c.Ctid == ctid {
			app.Contexts = append(app.Contexts[:i], app.Contexts[i+1:]...)
			return
		}
	}
}

// SetAppLogLevelTS applies a new default level/trace-status to every
// context currently registered under apid (the app-ll-ts control frame).
func (r *Registry) SetAppLogLevelTS(apid wire.Id4, level, traceStatus int8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[apid]
	if !ok {
		return
	}
	for _, c := range app.Contexts {
		r.cells[c.Pos] = CacheCell{Level: level, TraceStatus: traceStatus}
	}
}

// UpdateCache overwrites the cell at pos, as the housekeeper does on
// receipt of a log-level control frame.
func (r *Registry) UpdateCache(pos uint32, level, traceStatus int8) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if int(pos) >= len(r.cells) {
		return
	}
	r.cells[pos] = CacheCell{Level: level, TraceStatus: traceStatus}
}

// ReadLevel reads a cell without taking the lock — the intended fast
// path for the per-call log-level gate.
func (r *Registry) ReadLevel(pos uint32) (level, traceStatus int8, ok bool) {
	if int(pos) >= len(r.cells) {
		return 0, 0, false
	}
	cell := r.cells[pos]
	return cell.Level, cell.TraceStatus, true
}

// Apps returns a snapshot of every registered app in registration order.
// Callers that need to iterate contexts while sending (e.g. the
// housekeeper's reattach procedure) must re-acquire the lock per send per
// spec §4.6's "registry lock is released across each send" discipline;
// this snapshot only protects the initial walk.
func (r *Registry) Apps() []*App {
	r.mu.Lock()
	defer r.mu.Unlock()
	apps := make([]*App, 0, len(r.order))
	for _, id := range r.order {
		apps = append(apps, r.apps[id])
	}
	return apps
}

// App looks up a single app by id.
func (r *Registry) App(apid wire.Id4) (*App, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[apid]
	return app, ok
}

// Contexts returns a snapshot of apid's contexts, or nil if apid is not
// registered.
func (r *Registry) Contexts(apid wire.Id4) []*Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	app, ok := r.apps[apid]
	if !ok {
		return nil
	}
	out := make([]*Context, len(app.Contexts))
	copy(out, app.Contexts)
	return out
}
