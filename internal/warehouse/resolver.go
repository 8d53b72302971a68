// Package warehouse resolves warehouse ids to local filesystem base paths.
// The mapping is deployment configuration: the same warehouse row may be
// mounted at different paths on different hosts, or not mounted at all.
package warehouse

import (
	"os"
)

// Resolver is the injected capability the shuttle consumes. BasePath reports
// ok=false when the warehouse is unknown or not accessible from this process;
// callers treat that as transient and retry on the next pass.
type Resolver interface {
	BasePath(warehouseID string) (string, bool)
}

// DirResolver resolves warehouses from a static id -> directory map and
// probes the directory on every call, so an unmounted volume flips the
// warehouse to inaccessible without a restart.
type DirResolver struct {
	dirs map[string]string
}

var _ Resolver = (*DirResolver)(nil)

// NewDirResolver builds a resolver from the configured warehouse map.
func NewDirResolver(dirs map[string]string) *DirResolver {
	return &DirResolver{dirs: dirs}
}

// BasePath returns the warehouse's local base directory if it exists.
func (r *DirResolver) BasePath(warehouseID string) (string, bool) {
	dir, ok := r.dirs[warehouseID]
	if !ok {
		return "", false
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "", false
	}
	return dir, true
}
