package shuttle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"bookyard/internal/model"
)

// locationPath resolves a location to an absolute path, ok=false when its
// warehouse is not accessible from this process.
func (s *Shuttle) locationPath(loc model.Location) (string, bool) {
	base, ok := s.resolver.BasePath(loc.WarehouseID)
	if !ok {
		return "", false
	}
	return filepath.Join(base, loc.Path, loc.Filename), true
}

// allResolvable reports whether every warehouse referenced by the locations
// can be resolved; books touching an unreachable warehouse are skipped whole,
// never partially mutated.
func (s *Shuttle) allResolvable(locs []model.Location) bool {
	for _, l := range locs {
		if _, ok := s.resolver.BasePath(l.WarehouseID); !ok {
			return false
		}
	}
	return true
}

// copyFile duplicates src to dst through a temp file with fsync and an atomic
// rename, so a crash never leaves a half-written archive at the target path.
func copyFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer in.Close()

	tmp := dst + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("copy data: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		os.Remove(tmp)
		return fmt.Errorf("fsync: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

// moveFile renames src onto dst, falling back to copy-and-remove when the
// rename crosses filesystems (warehouses are separate mounts more often than
// not).
func moveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return fmt.Errorf("create target dir: %w", err)
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}
	if err := copyFile(src, dst); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("remove source after copy: %w", err)
	}
	return nil
}

// deleteFile removes the file, tolerating its absence.
func deleteFile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete %s: %w", path, err)
	}
	return nil
}
