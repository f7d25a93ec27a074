package shared

// TransitionObserver is notified after a workflow transition has been committed.
type TransitionObserver interface {
	ObserveTransition(entity, status string)
}

// NopObserver discards transitions.
type NopObserver struct{}

// ObserveTransition implements TransitionObserver.
func (NopObserver) ObserveTransition(string, string) {}
