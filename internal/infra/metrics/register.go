package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once
	pending      []prometheus.Collector
)

// register queues collectors from each file's init().
func register(cs ...prometheus.Collector) {
	pending = append(pending, cs...)
}

// MustRegister adds every activation collector to the default registry, once.
func MustRegister() {
	registerOnce.Do(func() { MustRegisterTo(prometheus.DefaultRegisterer) })
}

// MustRegisterTo adds every activation collector to reg. It panics on a
// duplicate, so call it once per registry.
func MustRegisterTo(reg prometheus.Registerer) {
	if len(pending) == 0 {
		return
	}
	reg.MustRegister(pending...)
}
