package output

import "github.com/tkjaer/gtping/internal/shared"

// Output interface for different output types
type Output interface {
	// CompleteTarget is called once per target as soon as its session ends
	CompleteTarget(stats shared.Stats)
	// Summary is called once with all targets in input order
	Summary(stats []shared.Stats)
	Close() error
}

// OutputManager manages multiple outputs
type OutputManager struct {
	outputs []Output
}

func (om *OutputManager) Register(o Output) {
	om.outputs = append(om.outputs, o)
}

func (om *OutputManager) CompleteTarget(stats shared.Stats) {
	for _, o := range om.outputs {
		o.CompleteTarget(stats)
	}
}

func (om *OutputManager) Summary(stats []shared.Stats) {
	for _, o := range om.outputs {
		o.Summary(stats)
	}
}

func (om *OutputManager) Close() {
	for _, o := range om.outputs {
		o.Close()
	}
}
