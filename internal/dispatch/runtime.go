package dispatch

import (
	"sync"

	"github.com/danmuck/smsctl/internal/registry"
)

// Runtime is the process-wide state shared by every broadcast: the connector
// registry and the alert id counter.
type Runtime struct {
	Registry *registry.Registry

	mu          sync.Mutex
	lastAlertID int
}

func NewRuntime(reg *registry.Registry) *Runtime {
	if reg == nil {
		reg = registry.New()
	}
	return &Runtime{Registry: reg, lastAlertID: 1}
}

// NextAlertID returns a fresh alert id. The first id is 2 and ids only grow.
func (r *Runtime) NextAlertID() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastAlertID++
	return r.lastAlertID
}
