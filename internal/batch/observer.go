package batch

// multiObserver forwards every event to each of its observers in order.
type multiObserver []Observer

// Observers combines observers into one. Nil entries are dropped. The
// result is a Pauser that reports paused while any member does.
func Observers(observers ...Observer) Observer {
	var m multiObserver
	for _, o := range observers {
		if o != nil {
			m = append(m, o)
		}
	}
	switch len(m) {
	case 0:
		return nil
	case 1:
		return m[0]
	}
	return m
}

func (m multiObserver) QueryStarted(job Job) {
	for _, o := range m {
		o.QueryStarted(job)
	}
}

func (m multiObserver) QueryFinished(result Result) {
	for _, o := range m {
		o.QueryFinished(result)
	}
}

func (m multiObserver) IsPaused() bool {
	for _, o := range m {
		if p, ok := o.(Pauser); ok && p.IsPaused() {
			return true
		}
	}
	return false
}
