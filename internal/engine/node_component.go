package engine

// componentApplier bridges a parent-owned value into a nested component
// engine ("state.items: selection.items"). The child reads the actual value
// back through its Bridge; the applier only signals that the input changed.
type componentApplier struct {
	prop string
}

func (a componentApplier) Apply(b *Binding, value any) error {
	child := b.Engine().childFor(b.node)
	if child == nil {
		return nil
	}
	// Delivered off the parent's lock: the child takes its own lock and its
	// bridge reads back through the parent, so in-line delivery would
	// reverse the lock order.
	prop := a.prop
	go func() {
		if err := child.ReceiveBridgedInput(prop); err != nil {
			child.mu.Lock()
			if child.renderErr == nil {
				child.renderErr = err
			}
			child.mu.Unlock()
		}
	}()
	return nil
}
