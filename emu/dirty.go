package emu

// dirtyList is a bounded queue of display-file offsets waiting to be
// redrawn. An offset is queued at most once until the list is drained.
type dirtyList struct {
	base   int
	queued []bool
	order  []int
}

func newDirtyList(base, n int) *dirtyList {
	return &dirtyList{
		base:   base,
		queued: make([]bool, n),
		order:  make([]int, 0, n),
	}
}

// mark queues offset. It returns false if offset was already queued.
func (l *dirtyList) mark(offset int) bool {
	i := offset - l.base
	if l.queued[i] {
		return false
	}
	l.queued[i] = true
	l.order = append(l.order, offset)
	return true
}

func (l *dirtyList) isQueued(offset int) bool {
	return l.queued[offset-l.base]
}

func (l *dirtyList) len() int {
	return len(l.order)
}

// drain calls fn for every queued offset, most recently marked first,
// and leaves the list empty. fn must not mark this list.
func (l *dirtyList) drain(fn func(offset int)) {
	for i := len(l.order) - 1; i >= 0; i-- {
		offset := l.order[i]
		l.queued[offset-l.base] = false
		fn(offset)
	}
	l.order = l.order[:0]
}

// reset empties the list without visiting it.
func (l *dirtyList) reset() {
	for _, offset := range l.order {
		l.queued[offset-l.base] = false
	}
	l.order = l.order[:0]
}
