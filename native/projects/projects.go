package projects

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"partnerledger/native/fees"
)

var (
	ErrProjectExists  = errors.New("projects: project already registered")
	ErrInvalidProject = errors.New("projects: invalid project")
	ErrInvalidWindow  = errors.New("projects: invalid removal window")
)

// Project is a registered project with its administrator and the collector
// receiving client fees for attributions in it.
type Project struct {
	ID              common.Address
	Admin           common.Address
	ClientCollector common.Address
}

// Factory is an in-memory view of the project factory. It holds the project
// set, the protocol-wide fee parameters and the budget removal window.
type Factory struct {
	mu              sync.RWMutex
	projects        map[common.Address]Project
	params          fees.Params
	removalCooldown time.Duration
	removalWindow   time.Duration
}

// NewFactory builds a factory with the given fee parameters and removal
// timing. The parameters are validated.
func NewFactory(params fees.Params, removalCooldown, removalWindow time.Duration) (*Factory, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if removalCooldown < 0 || removalWindow <= 0 {
		return nil, fmt.Errorf("%w: cooldown %s, window %s", ErrInvalidWindow, removalCooldown, removalWindow)
	}
	return &Factory{
		projects:        make(map[common.Address]Project),
		params:          params.Clone(),
		removalCooldown: removalCooldown,
		removalWindow:   removalWindow,
	}, nil
}

// Register adds a project. The project and admin addresses must be non-zero.
func (f *Factory) Register(id, admin, clientCollector common.Address) error {
	if id == (common.Address{}) || admin == (common.Address{}) {
		return fmt.Errorf("%w: project and admin required", ErrInvalidProject)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.projects[id]; ok {
		return ErrProjectExists
	}
	f.projects[id] = Project{ID: id, Admin: admin, ClientCollector: clientCollector}
	return nil
}

func (f *Factory) IsProjectRegistered(id common.Address) bool {
	_, ok := f.Project(id)
	return ok
}

func (f *Factory) Project(id common.Address) (Project, bool) {
	if f == nil {
		return Project{}, false
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.projects[id]
	return p, ok
}

// Projects lists registered projects sorted by address.
func (f *Factory) Projects() []Project {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]Project, 0, len(f.projects))
	for _, p := range f.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.Cmp(out[j].ID) < 0 })
	return out
}

// FeeParameters returns a copy of the current fee parameters.
func (f *Factory) FeeParameters() fees.Params {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.params.Clone()
}

// SetFeeParameters replaces the fee parameters. Attributions pick up the new
// values immediately.
func (f *Factory) SetFeeParameters(params fees.Params) error {
	if err := params.Validate(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.params = params.Clone()
	return nil
}

// BudgetRemovalWindow returns the delay after a removal application and the
// length of the window in which removal is then allowed.
func (f *Factory) BudgetRemovalWindow() (cooldown, window time.Duration) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.removalCooldown, f.removalWindow
}
