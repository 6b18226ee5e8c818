package tools

import (
	"fmt"
	"sort"
	"sync"

	"devteam/pkg/logx"
)

// CapabilityGroup identifies an optional tool group whose availability is
// decided once at orchestrator initialization.
type CapabilityGroup string

const (
	GroupFilesystem     CapabilityGroup = "filesystem"
	GroupStaticAnalysis CapabilityGroup = "static_analysis"
	GroupTestExecution  CapabilityGroup = "test_execution"
	GroupVersionControl CapabilityGroup = "version_control"
)

// CapabilityRegistry tracks which tool groups are available. Availability is
// computed once from environment and credentials; a false negative here is a
// configuration problem, not a transient failure, so there are no retries.
type CapabilityRegistry struct {
	mu     sync.RWMutex
	groups map[CapabilityGroup]bool
	logger *logx.Logger
}

// NewCapabilityRegistry creates an empty capability registry.
func NewCapabilityRegistry() *CapabilityRegistry {
	return &CapabilityRegistry{
		groups: make(map[CapabilityGroup]bool),
		logger: logx.NewLogger("capabilities"),
	}
}

// Register records whether a tool group is available.
func (r *CapabilityRegistry) Register(group CapabilityGroup, available bool) {
	r.mu.Lock()
	r.groups[group] = available
	r.mu.Unlock()

	if available {
		r.logger.Info("capability group enabled: %s", group)
	} else {
		r.logger.Info("capability group disabled: %s", group)
	}
}

// IsAvailable reports whether a group was registered as available.
func (r *CapabilityRegistry) IsAvailable(group CapabilityGroup) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.groups[group]
}

// AvailableGroups returns the sorted set of available groups.
func (r *CapabilityRegistry) AvailableGroups() []CapabilityGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()

	groups := make([]CapabilityGroup, 0, len(r.groups))
	for group, available := range r.groups {
		if available {
			groups = append(groups, group)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })
	return groups
}

// RequireFilesystem fails fast when the mandatory filesystem group is
// unavailable. Every role depends transitively on reading and writing
// project files.
func (r *CapabilityRegistry) RequireFilesystem() error {
	if !r.IsAvailable(GroupFilesystem) {
		return fmt.Errorf("mandatory capability group %q is unavailable", GroupFilesystem)
	}
	return nil
}
