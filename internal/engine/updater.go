package engine

import (
	"sync"
	"sync/atomic"

	"github.com/structive/structive-go/internal/stateref"
)

// activityTracker counts in-flight work of one batch session: open update
// scopes, queued refs and a pending hook invocation. Settle blocks on it.
type activityTracker struct {
	mu    sync.Mutex
	cond  *sync.Cond
	count int
}

func newActivityTracker() *activityTracker {
	t := &activityTracker{}
	t.cond = sync.NewCond(&t.mu)
	return t
}

func (t *activityTracker) begin() {
	t.mu.Lock()
	t.count++
	t.mu.Unlock()
}

func (t *activityTracker) end() {
	t.mu.Lock()
	t.count--
	if t.count <= 0 {
		t.cond.Broadcast()
	}
	t.mu.Unlock()
}

func (t *activityTracker) wait() {
	t.mu.Lock()
	for t.count > 0 {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

func (t *activityTracker) idle() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count == 0
}

// Updater is one batch session: it collects enqueued refs under the engine
// lock, stamps the invalidation map, and drains batches on its own render
// goroutine. A session that fully settles is discarded; the next update
// starts a fresh one with a higher version.
type Updater struct {
	e       *Engine
	version uint64
	tracker *activityTracker

	// revision, queue, saved, hookMark, hookPending and affectedMemo are
	// guarded by e.mu.
	revision     uint64
	queue        []*stateref.Ref
	saved        []Change
	hookMark     int
	hookPending  bool
	affectedMemo map[string][]string

	wake     chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
	settled  atomic.Bool
}

func newUpdater(e *Engine, version uint64) *Updater {
	u := &Updater{
		e:            e,
		version:      version,
		tracker:      newActivityTracker(),
		affectedMemo: make(map[string][]string),
		wake:         make(chan struct{}, 1),
		quit:         make(chan struct{}),
	}
	go u.renderLoop()
	return u
}

// enqueueRef queues one changed ref for the next batch and stamps every path
// in its affected closure so cached reads of those paths go stale. Callers
// hold e.mu.
func (u *Updater) enqueueRef(ref *stateref.Ref) {
	u.revision++
	stamp := verRev{version: u.version, revision: u.revision}
	for _, pattern := range u.affected(ref.Info.Pattern) {
		u.e.vrByPath[pattern] = stamp
	}
	u.queue = append(u.queue, ref)
	u.saved = append(u.saved, changeOf(ref))
	u.tracker.begin()
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// affected memoizes the dependency closure per pattern for the session.
func (u *Updater) affected(pattern string) []string {
	if closure, ok := u.affectedMemo[pattern]; ok {
		return closure
	}
	closure := u.e.pm.AffectedClosure(pattern)
	u.affectedMemo[pattern] = closure
	return closure
}

// currentRevision returns the stamp revision for entries cached right now.
// Callers hold e.mu.
func (u *Updater) currentRevision() uint64 { return u.revision }

// hasSaved reports whether changes accumulated since the hook last ran.
// Callers hold e.mu.
func (u *Updater) hasSaved() bool { return len(u.saved) > u.hookMark }

// requestHook schedules one OnUpdated invocation after the pending batches
// drain. Callers hold e.mu.
func (u *Updater) requestHook() {
	if u.hookPending {
		return
	}
	u.hookPending = true
	u.tracker.begin()
	select {
	case u.wake <- struct{}{}:
	default:
	}
}

// takeBatch claims the queued refs. Callers hold e.mu.
func (u *Updater) takeBatch() []*stateref.Ref {
	batch := u.queue
	u.queue = nil
	return batch
}

func (u *Updater) isSettled() bool { return u.settled.Load() }

// terminate stops the render goroutine without waiting for pending work.
func (u *Updater) terminate() {
	u.settled.Store(true)
	u.quitOnce.Do(func() { close(u.quit) })
}

// renderLoop is the session's goroutine: it sleeps until woken, drains every
// queued batch, runs the hook if one is pending, and exits once the session
// has settled or is terminated.
func (u *Updater) renderLoop() {
	for {
		select {
		case <-u.quit:
			return
		case <-u.wake:
		}
		u.drain()
		if u.settled.Load() {
			u.quitOnce.Do(func() { close(u.quit) })
		}
	}
}

// drain renders queued batches until none remain, then dispatches a pending
// hook. Each iteration takes the engine lock for the whole batch so mutation
// and rendering never interleave.
func (u *Updater) drain() {
	for {
		u.e.mu.Lock()
		batch := u.takeBatch()
		if len(batch) > 0 {
			if err := u.renderBatch(batch); err != nil {
				u.e.collector.IncrementRenderError()
				if u.e.renderErr == nil {
					u.e.renderErr = err
				}
			}
			u.e.mu.Unlock()
			for range batch {
				u.tracker.end()
			}
			continue
		}

		if u.hookPending {
			u.hookPending = false
			changes := append([]Change(nil), u.saved[u.hookMark:]...)
			u.hookMark = len(u.saved)
			u.e.mu.Unlock()
			u.runHook(changes)
			u.tracker.end()
			continue
		}

		u.e.mu.Unlock()
		if u.tracker.idle() {
			u.settled.Store(true)
		}
		return
	}
}

// renderBatch reconciles the DOM for one batch. Callers hold e.mu.
func (u *Updater) renderBatch(batch []*stateref.Ref) error {
	r := newRenderer(u.e)
	if err := r.render(batch); err != nil {
		return err
	}
	u.e.collector.IncrementRenderPass()
	return nil
}

// runHook invokes OnUpdated through a fresh writable scope; mutations it
// makes feed the same session as new batches.
func (u *Updater) runHook(changes []Change) {
	if u.e.class.OnUpdated == nil {
		return
	}
	err := u.e.Update(func(api *StateAPI) error {
		return u.e.class.OnUpdated(api, changes)
	})
	if err != nil {
		u.e.mu.Lock()
		if u.e.renderErr == nil {
			u.e.renderErr = err
		}
		u.e.mu.Unlock()
	}
}

// changeOf captures the pattern and concrete loop indexes of a ref for the
// hook payload.
func changeOf(ref *stateref.Ref) Change {
	change := Change{Pattern: ref.Info.Pattern}
	if li, err := ref.ListIndex(); err == nil && !li.IsZero() {
		change.Indexes = li.Indexes()
	}
	return change
}
