package bootstrap

import "slices"

// Blackboard is the state shared with every plugin during negotiation:
// the queue of plugin names still to construct and the launch argument list.
type Blackboard struct {
	queue     []string
	arguments []string
	plugins   []Plugin
}

// NewBlackboard creates a blackboard with names queued in order.
func NewBlackboard(names ...string) *Blackboard {
	return &Blackboard{queue: append([]string(nil), names...)}
}

// Enqueue adds plugin names to the back of the queue. Names that were
// already handled are skipped when they come up.
func (b *Blackboard) Enqueue(names ...string) {
	b.queue = append(b.queue, names...)
}

// Pending returns the queued names in order.
func (b *Blackboard) Pending() []string {
	return slices.Clone(b.queue)
}

func (b *Blackboard) pop() (string, bool) {
	if len(b.queue) == 0 {
		return "", false
	}
	name := b.queue[0]
	b.queue = b.queue[1:]
	return name, true
}

// AppendArguments adds arguments to the launch argument list.
func (b *Blackboard) AppendArguments(args ...string) {
	b.arguments = append(b.arguments, args...)
}

// Arguments returns the launch argument list.
func (b *Blackboard) Arguments() []string {
	return slices.Clone(b.arguments)
}

// HasArgument reports whether arg is already in the launch argument list.
func (b *Blackboard) HasArgument(arg string) bool {
	return slices.Contains(b.arguments, arg)
}

// Plugins returns every plugin constructed so far, in construction order.
func (b *Blackboard) Plugins() []Plugin {
	return slices.Clone(b.plugins)
}
