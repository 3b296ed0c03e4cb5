package engine

import (
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/net/html"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/listindex"
	"github.com/structive/structive-go/internal/metrics"
	"github.com/structive/structive-go/internal/pathman"
	"github.com/structive/structive-go/internal/serr"
	"github.com/structive/structive-go/internal/stateref"
)

// Config carries the engine-level knobs.
type Config struct {
	// RefStackDepth bounds the reentrant getter stack; exceeding it means
	// a dependency cycle.
	RefStackDepth int
	// MaxLoopDepth bounds the loop-index alias levels ($1..$n).
	MaxLoopDepth int
}

// DefaultConfig returns the default engine knobs.
func DefaultConfig() Config {
	return Config{RefStackDepth: 256, MaxLoopDepth: 32}
}

// Bridge is the parent/child state channel: a child engine whose paths are
// owned by a parent-supplied binding reads and writes through it.
type Bridge interface {
	// StartsWith reports whether the bridge serves the given pattern.
	StartsWith(pattern string) bool
	// Get reads the bridged slot.
	Get(ref *stateref.Ref) (any, error)
	// Set writes the bridged slot.
	Set(ref *stateref.Ref, value any) error
	// ListIndexes returns the index identities of a bridged list.
	ListIndexes(ref *stateref.Ref) ([]listindex.ListIndex, error)
}

// Engine is one live component instance: its state tree, path registry,
// caches, bindings and update machinery. All mutation and rendering is
// serialized on mu; the render loop runs on its own goroutine and takes the
// same lock before touching the DOM.
type Engine struct {
	mu      sync.Mutex
	class   *StateClass
	config  Config
	store   TemplateStore
	filters FilterRegistry

	state map[string]any
	pm    *pathman.Manager
	arena *listindex.Arena
	refs  *stateref.Table

	// accessors are the generated fast get/set pairs synthesized at
	// class-analysis time; the dynamic segment walk is the fallback for
	// paths discovered later.
	accessors map[string]accessorPair

	cache     map[*stateref.Ref]cacheEntry
	listCache map[*stateref.Ref]listEntry
	vrByPath  map[string]verRev

	// swapBase holds, per list, the committed value and index identities
	// captured before the first element overwrite of an open update. The
	// batch's final value diffs against it once, at render, so intermediate
	// write states never churn identities.
	swapBase map[*stateref.Ref]listEntry
	// inUpdate is true while a writable callback runs under mu.
	inUpdate bool
	// freshPass collects identities minted by list diffs during the render
	// pass in flight, nil outside one.
	freshPass map[listindex.ListIndex]struct{}

	bindingsByRef map[*stateref.Ref][]*Binding

	updaterSeq uint64
	updater    *Updater
	renderErr  error

	mountRoot   *html.Node
	events      *dom.EventRegistry
	rootContent *BindContent

	bridge      Bridge
	children    []*Engine
	childByNode map[*html.Node]*Engine
	sink      PatchSink
	collector *metrics.Collector
	navigator func(to string) error
	host      any

	connected bool
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithConfig overrides the default knobs.
func WithConfig(cfg Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithPatchSink attaches a mutation sink.
func WithPatchSink(sink PatchSink) Option {
	return func(e *Engine) { e.sink = sink }
}

// WithMetrics attaches a metrics collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// WithBridge attaches the parent/child state bridge.
func WithBridge(b Bridge) Option {
	return func(e *Engine) { e.bridge = b }
}

// WithNavigator attaches the $navigate hook (the router is external).
func WithNavigator(fn func(to string) error) Option {
	return func(e *Engine) { e.navigator = fn }
}

// WithHost attaches the host object returned by $component.
func WithHost(host any) Option {
	return func(e *Engine) { e.host = host }
}

// New builds an engine for one component instance. Class analysis (path
// reflection and accessor generation) happens here, once.
func New(class *StateClass, store TemplateStore, filters FilterRegistry, opts ...Option) (*Engine, error) {
	pm, err := analyzeClass(class)
	if err != nil {
		return nil, err
	}
	init := class.Init
	if init == nil {
		init = map[string]any{}
	}
	e := &Engine{
		class:         class,
		config:        DefaultConfig(),
		store:         store,
		filters:       filters,
		state:         deepCopyState(init).(map[string]any),
		pm:            pm,
		arena:         listindex.NewArena(),
		refs:          stateref.NewTable(),
		cache:         make(map[*stateref.Ref]cacheEntry),
		listCache:     make(map[*stateref.Ref]listEntry),
		vrByPath:      make(map[string]verRev),
		swapBase:      make(map[*stateref.Ref]listEntry),
		bindingsByRef: make(map[*stateref.Ref][]*Binding),
		childByNode:   make(map[*html.Node]*Engine),
		events:        dom.NewEventRegistry(),
		collector:     metrics.NewCollector(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.generateAccessors()
	e.collector.IncrementEngineCreated()
	return e, nil
}

// Class returns the component class.
func (e *Engine) Class() *StateClass { return e.class }

// PathManager returns the per-instance path registry.
func (e *Engine) PathManager() *pathman.Manager { return e.pm }

// Metrics returns the collector.
func (e *Engine) Metrics() *metrics.Collector { return e.collector }

// Events returns the event registry of the mounted tree.
func (e *Engine) Events() *dom.EventRegistry { return e.events }

// MountRoot returns the node the component is mounted under, nil before
// ConnectedCallback.
func (e *Engine) MountRoot() *html.Node { return e.mountRoot }

// ConnectedCallback mounts the component: seeds the state (initialState is
// the dataset-supplied JSON, may be empty), instantiates the root template,
// activates its bindings, performs the initial full render and starts the
// update machinery.
func (e *Engine) ConnectedCallback(mount *html.Node, templateID int, initialState string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.connected {
		return serr.New("CFG-002", "engine", "component already connected",
			serr.WithContext("class", e.class.Name))
	}
	if initialState != "" {
		var seed map[string]any
		if err := json.Unmarshal([]byte(initialState), &seed); err != nil {
			return serr.New("CFG-001", "engine", "initial state is not valid JSON",
				serr.WithContext("class", e.class.Name), serr.WithCause(err))
		}
		for key, value := range seed {
			if err := e.pm.AddPath(key); err != nil {
				return err
			}
			if err := registerValuePaths(e.pm, key, value); err != nil {
				return err
			}
			e.state[key] = value
		}
	}

	content, err := newBindContent(e, templateID, nil)
	if err != nil {
		return err
	}
	e.mountRoot = mount
	e.rootContent = content
	content.Mount(mount, nil)
	content.Activate()

	e.connected = true
	if err := e.initialRender(); err != nil {
		return err
	}
	return nil
}

// DisconnectedCallback settles pending work, stops the render loop and
// releases the mounted tree.
func (e *Engine) DisconnectedCallback() error {
	if err := e.Settle(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.connected {
		return nil
	}
	if e.updater != nil {
		e.updater.terminate()
		e.updater = nil
	}
	if e.rootContent != nil {
		e.rootContent.Inactivate()
		e.rootContent.Unmount()
		e.rootContent = nil
	}
	e.connected = false
	e.collector.IncrementEngineDestroyed()
	return nil
}

// initialRender applies every binding of the freshly mounted tree once.
// Callers hold e.mu.
func (e *Engine) initialRender() error {
	r := newRenderer(e)
	if err := r.applyContent(e.rootContent); err != nil {
		return err
	}
	if err := r.flushPhases(); err != nil {
		return err
	}
	e.collector.IncrementRenderPass()
	return nil
}

// Update opens a writable state scope, runs fn and lets the render loop
// reconcile the DOM asynchronously. Errors from fn are wrapped as UPD-301
// without tearing down the loop.
func (e *Engine) Update(fn func(api *StateAPI) error) error {
	return e.updateInContext(nil, fn)
}

func (e *Engine) updateInContext(lc *LoopContext, fn func(api *StateAPI) error) error {
	e.mu.Lock()
	u := e.ensureUpdater()
	u.tracker.begin()
	prevIn := e.inUpdate
	e.inUpdate = true
	h := e.newHandler(true, lc)
	api := &StateAPI{h: h}
	err := fn(api)
	e.inUpdate = prevIn
	if err == nil && e.class.OnUpdated != nil && u.hasSaved() {
		u.requestHook()
	}
	e.mu.Unlock()
	u.tracker.end()
	if err != nil {
		return serr.New("UPD-301", "updater", "update callback rejected",
			serr.WithContext("class", e.class.Name), serr.WithCause(err))
	}
	return nil
}

// Settle blocks until every pending batch has rendered, then reports (and
// clears) the first render error of the settled session.
func (e *Engine) Settle() error {
	e.mu.Lock()
	u := e.updater
	e.mu.Unlock()
	if u != nil {
		u.tracker.wait()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	err := e.renderErr
	e.renderErr = nil
	return err
}

// UpdateComplete returns a channel closed once the current batch session has
// fully settled. With no session in flight the channel is already closed.
func (e *Engine) UpdateComplete() <-chan struct{} {
	e.mu.Lock()
	u := e.updater
	e.mu.Unlock()
	done := make(chan struct{})
	if u == nil {
		close(done)
		return done
	}
	go func() {
		u.tracker.wait()
		close(done)
	}()
	return done
}

// ReadAPI returns a read-only accessor over the current state. Unlike the
// scoped APIs handed to callbacks it locks the engine per call.
func (e *Engine) ReadAPI() *StateAPI {
	h := e.newHandler(false, nil)
	h.external = true
	return &StateAPI{h: h}
}

// RegisterChild links a nested component engine so renders can notify it.
// The child must already be connected; it is keyed by its mount node.
func (e *Engine) RegisterChild(child *Engine) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.children = append(e.children, child)
	if child.mountRoot != nil {
		e.childByNode[child.mountRoot] = child
	}
}

// childFor returns the child engine mounted on node, nil when none is.
func (e *Engine) childFor(node *html.Node) *Engine {
	return e.childByNode[node]
}

// ReceiveBridgedInput is called on a child engine when a parent-owned value
// changed; the child invalidates and re-renders its own dependents.
func (e *Engine) ReceiveBridgedInput(pattern string) error {
	return e.Update(func(api *StateAPI) error {
		h := api.h
		resolved, err := h.resolveRef(pattern)
		if err != nil {
			return err
		}
		h.e.ensureUpdater().enqueueRef(resolved)
		return nil
	})
}

// ensureUpdater returns the live batch session, rebuilding a settled or
// missing one. Callers hold e.mu.
func (e *Engine) ensureUpdater() *Updater {
	if e.updater == nil || e.updater.isSettled() {
		e.updaterSeq++
		e.updater = newUpdater(e, e.updaterSeq)
	}
	return e.updater
}

// bindingsFor returns the live bindings registered for ref. Callers hold
// e.mu.
func (e *Engine) bindingsFor(ref *stateref.Ref) []*Binding {
	return e.bindingsByRef[ref]
}

func (e *Engine) registerBinding(b *Binding) {
	ref := b.state.Ref()
	if ref == nil {
		return
	}
	e.bindingsByRef[ref] = append(e.bindingsByRef[ref], b)
}

func (e *Engine) unregisterBinding(b *Binding) {
	ref := b.state.Ref()
	if ref == nil {
		return
	}
	bindings := e.bindingsByRef[ref]
	for i, other := range bindings {
		if other == b {
			e.bindingsByRef[ref] = append(bindings[:i], bindings[i+1:]...)
			break
		}
	}
	if len(e.bindingsByRef[ref]) == 0 {
		delete(e.bindingsByRef, ref)
	}
}

// template resolves a template id through the store.
func (e *Engine) template(id int) (*Template, error) {
	t, ok := e.store.Template(id)
	if !ok {
		return nil, serr.New("CFG-003", "engine", "unknown template id",
			serr.WithContext("template", id))
	}
	return t, nil
}

// filterChain builds the composed filter pipeline for one binding side.
func (e *Engine) filterChain(calls []FilterCall) ([]FilterFn, error) {
	if len(calls) == 0 {
		return nil, nil
	}
	chain := make([]FilterFn, 0, len(calls))
	for _, call := range calls {
		factory, ok := e.filters.Lookup(call.Name)
		if !ok {
			return nil, serr.New("CFG-004", "engine", "unknown filter",
				serr.WithContext("filter", call.Name))
		}
		fn, err := factory(call.Options)
		if err != nil {
			return nil, fmt.Errorf("filter %q: %w", call.Name, err)
		}
		chain = append(chain, fn)
	}
	return chain, nil
}

// applyFilters runs value through a composed chain.
func applyFilters(chain []FilterFn, value any) (any, error) {
	var err error
	for _, fn := range chain {
		value, err = fn(value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}
