package structive

import (
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/structive/structive-go/internal/dom"
	"github.com/structive/structive-go/internal/engine"
	"github.com/structive/structive-go/internal/metrics"
	"github.com/structive/structive-go/internal/serr"
)

// Aliases so applications program against this package alone; the reactive
// core stays internal.
type (
	// StateAPI is the scoped state accessor handed to callbacks.
	StateAPI = engine.StateAPI
	// Getter computes a derived value.
	Getter = engine.Getter
	// Setter accepts a write to a computed path.
	Setter = engine.Setter
	// EventHandler is the value type stored in state for event bindings.
	EventHandler = engine.EventHandler
	// Change names one state slot that changed during a batch.
	Change = engine.Change
	// Event is an in-process DOM event.
	Event = dom.Event
	// Patch is one serialized DOM mutation.
	Patch = engine.Patch
	// PatchSink receives the mutation stream of a component.
	PatchSink = engine.PatchSink
	// FilterFn transforms one bound value.
	FilterFn = engine.FilterFn
	// FilterFactory builds a FilterFn from its option list.
	FilterFactory = engine.FilterFactory
	// MetricsSnapshot is a point-in-time view of a component's counters.
	MetricsSnapshot = metrics.EngineMetrics
)

// ComponentDef declares one component type: markup plus state behavior.
type ComponentDef struct {
	Name     string
	Template string
	Init     map[string]any
	Getters  map[string]Getter
	Setters  map[string]Setter
	// Lists declares list paths not discoverable from Init, typically
	// getter-backed lists.
	Lists []string
	// OnUpdated runs after each settled batch with the changed paths.
	OnUpdated func(api *StateAPI, changes []Change) error
}

// Component is one live instance of a definition: a compiled template, an
// engine and a mount point.
type Component struct {
	def        ComponentDef
	cfg        Config
	registry   *Registry
	filters    *Filters
	engine     *engine.Engine
	templateID int
	mount      *html.Node
	// parent links a nested component to the component owning its bridged
	// state; registration with the parent engine happens at Connect.
	parent *Component
}

// ComponentOption configures a component at construction.
type ComponentOption func(*componentOptions)

type componentOptions struct {
	cfg       Config
	registry  *Registry
	filters   *Filters
	sink      PatchSink
	navigator func(to string) error
	host      any
	parent    *Component
	routes    map[string]string
}

// WithComponentConfig overrides the default runtime knobs.
func WithComponentConfig(cfg Config) ComponentOption {
	return func(o *componentOptions) { o.cfg = cfg }
}

// WithSharedRegistry compiles into an existing registry so components can
// share template ids.
func WithSharedRegistry(r *Registry) ComponentOption {
	return func(o *componentOptions) { o.registry = r }
}

// WithFilters replaces the built-in filter library.
func WithFilters(f *Filters) ComponentOption {
	return func(o *componentOptions) { o.filters = f }
}

// WithSink attaches a mutation sink; live sessions use this to stream
// patches.
func WithSink(sink PatchSink) ComponentOption {
	return func(o *componentOptions) { o.sink = sink }
}

// WithNavigator attaches the navigation hook reachable through api.Navigate.
func WithNavigator(fn func(to string) error) ComponentOption {
	return func(o *componentOptions) { o.navigator = fn }
}

// WithHost attaches the host object returned by api.Component.
func WithHost(host any) ComponentOption {
	return func(o *componentOptions) { o.host = host }
}

// WithParent nests the component under parent; routes maps this component's
// state path prefixes to the parent paths that own them.
func WithParent(parent *Component, routes map[string]string) ComponentOption {
	return func(o *componentOptions) {
		o.parent = parent
		o.routes = routes
	}
}

// NewComponent compiles the definition's template and builds its engine.
// The component is inert until Connect.
func NewComponent(def ComponentDef, opts ...ComponentOption) (*Component, error) {
	o := componentOptions{cfg: DefaultConfig()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.filters == nil {
		o.filters = NewFilters()
	}

	templateID, err := o.registry.Compile(def.Template)
	if err != nil {
		return nil, err
	}

	class := &engine.StateClass{
		Name:      def.Name,
		Init:      def.Init,
		Getters:   def.Getters,
		Setters:   def.Setters,
		Lists:     def.Lists,
		OnUpdated: def.OnUpdated,
	}
	engineOpts := []engine.Option{engine.WithConfig(o.cfg.engineConfig())}
	if o.sink != nil {
		engineOpts = append(engineOpts, engine.WithPatchSink(o.sink))
	}
	if o.navigator != nil {
		engineOpts = append(engineOpts, engine.WithNavigator(o.navigator))
	}
	if o.host != nil {
		engineOpts = append(engineOpts, engine.WithHost(o.host))
	}
	if o.parent != nil {
		bridge := engine.NewParentBridge(o.parent.engine, o.routes)
		engineOpts = append(engineOpts, engine.WithBridge(bridge))
	}

	eng, err := engine.New(class, o.registry, o.filters, engineOpts...)
	if err != nil {
		return nil, err
	}
	c := &Component{
		def:        def,
		cfg:        o.cfg,
		registry:   o.registry,
		filters:    o.filters,
		engine:     eng,
		templateID: templateID,
	}
	if o.parent != nil {
		c.parent = o.parent
	}
	return c, nil
}

// Connect mounts the component under mount (a fresh container when nil) and
// performs the initial render. initialState is optional dataset JSON merged
// over Init.
func (c *Component) Connect(mount *html.Node, initialState string) error {
	if mount == nil {
		mount = &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div}
	}
	if err := c.engine.ConnectedCallback(mount, c.templateID, initialState); err != nil {
		return err
	}
	c.mount = mount
	if c.parent != nil {
		c.parent.engine.RegisterChild(c.engine)
	}
	return nil
}

// Disconnect settles pending work and unmounts the component.
func (c *Component) Disconnect() error {
	return c.engine.DisconnectedCallback()
}

// Update opens a writable state scope; the DOM reconciles asynchronously.
func (c *Component) Update(fn func(api *StateAPI) error) error {
	return c.engine.Update(fn)
}

// Settle blocks until pending batches have rendered and reports the first
// render error.
func (c *Component) Settle() error { return c.engine.Settle() }

// UpdateComplete returns a channel closed once in-flight work has settled.
func (c *Component) UpdateComplete() <-chan struct{} { return c.engine.UpdateComplete() }

// ReadAPI returns a read-only state accessor.
func (c *Component) ReadAPI() *StateAPI { return c.engine.ReadAPI() }

// HTML serializes the mounted tree. Empty before Connect.
func (c *Component) HTML() string {
	if c.mount == nil {
		return ""
	}
	return dom.SerializeChildren(c.mount)
}

// Mount returns the mount node, nil before Connect.
func (c *Component) Mount() *html.Node { return c.mount }

// Dispatch delivers an event to its target node and settles the resulting
// batch.
func (c *Component) Dispatch(ev *Event) error {
	if err := c.engine.Events().Dispatch(ev); err != nil {
		return err
	}
	return c.engine.Settle()
}

// DispatchAt delivers an event addressed by a childNodes index path from the
// mount root, the form transport adapters receive from remote clients.
func (c *Component) DispatchAt(nodePath []int, eventType string, value any) error {
	if c.mount == nil {
		return serr.New("CFG-002", "component", "component is not connected",
			serr.WithContext("class", c.def.Name))
	}
	target, err := dom.ResolveNodePath(c.mount, nodePath)
	if err != nil {
		return err
	}
	return c.Dispatch(&Event{Type: eventType, Target: target, Value: value})
}

// Metrics exposes the component's metrics snapshot.
func (c *Component) Metrics() MetricsSnapshot {
	return c.engine.Metrics().GetMetrics()
}
