package analyzer

import (
	"fmt"
	"sort"
	"sync"

	"go.uber.org/multierr"
)

// Manager owns named instances sharing one set of options
type Manager struct {
	opts Options

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager validates opts and returns an empty manager
func NewManager(opts Options) (*Manager, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Manager{
		opts:      opts,
		instances: make(map[string]*Instance),
	}, nil
}

// Instance returns the instance called name, creating it on first use
func (m *Manager) Instance(name string) (*Instance, error) {
	if name == "" {
		return nil, fmt.Errorf("instance name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if in, ok := m.instances[name]; ok {
		return in, nil
	}
	in, err := newInstance(name, m.opts)
	if err != nil {
		return nil, err
	}
	m.instances[name] = in
	return in, nil
}

// Lookup returns an existing instance without creating one
func (m *Manager) Lookup(name string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	in, ok := m.instances[name]
	return in, ok
}

// Names returns the instance names in sorted order
func (m *Manager) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Compare scores the learner instance's pitch track against the reference's
func (m *Manager) Compare(reference, learner string) (*Comparison, error) {
	ref, ok := m.Lookup(reference)
	if !ok {
		return nil, fmt.Errorf("compare: unknown instance %q", reference)
	}
	lrn, ok := m.Lookup(learner)
	if !ok {
		return nil, fmt.Errorf("compare: unknown instance %q", learner)
	}
	return CompareTracks(ref.Snapshot().Track, lrn.Snapshot().Track)
}

// Close closes every instance and the playback sink
func (m *Manager) Close() error {
	m.mu.Lock()
	instances := make([]*Instance, 0, len(m.instances))
	for _, in := range m.instances {
		instances = append(instances, in)
	}
	m.mu.Unlock()

	var err error
	for _, in := range instances {
		err = multierr.Append(err, in.Close())
	}
	if m.opts.Sink != nil {
		err = multierr.Append(err, m.opts.Sink.Close())
	}
	return err
}
