package tools

import "sync"

// Workspace holds the active project root shared by all tool instances.
// Agents are constructed before a project is bound, so tools hold a reference
// to the workspace and read the root at call time. Rebinding to a new project
// replaces the root in place.
type Workspace struct {
	mu   sync.RWMutex
	root string
}

// NewWorkspace creates a workspace with the given root, which may be empty
// until a project is bound.
func NewWorkspace(root string) *Workspace {
	return &Workspace{root: root}
}

// Root returns the active project root. Empty until a project is bound.
func (w *Workspace) Root() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.root
}

// SetRoot rebinds the workspace to a new project root.
func (w *Workspace) SetRoot(root string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.root = root
}
