package services

import "sync"

// Invalidator is told about every mutation so views of path can refresh.
type Invalidator interface {
	Invalidate(path string)
}

// ViewVersions counts invalidations per page path. Readers compare versions
// to detect that a view went stale.
type ViewVersions struct {
	mu       sync.Mutex
	versions map[string]uint64
}

func NewViewVersions() *ViewVersions {
	return &ViewVersions{versions: make(map[string]uint64)}
}

func normalizeViewPath(path string) string {
	if path == "" {
		return "/"
	}
	return path
}

func (v *ViewVersions) Invalidate(path string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.versions[normalizeViewPath(path)]++
}

func (v *ViewVersions) Version(path string) uint64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.versions[normalizeViewPath(path)]
}
