package powerlock

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const DefaultSysfsDir = "/sys/power"

// Resource is the physical lock being reference-counted.
type Resource interface {
	Acquire() error
	Release() error
}

// Sysfs drives the kernel wake lock interface by writing the lock name to
// wake_lock / wake_unlock.
type Sysfs struct {
	Name string
	Dir  string
}

func (s Sysfs) Acquire() error { return s.write("wake_lock") }

func (s Sysfs) Release() error { return s.write("wake_unlock") }

func (s Sysfs) write(file string) error {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return fmt.Errorf("powerlock: sysfs lock name required")
	}
	dir := s.Dir
	if dir == "" {
		dir = DefaultSysfsDir
	}
	f, err := os.OpenFile(filepath.Join(dir, file), os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return fmt.Errorf("powerlock: open %s: %w", file, err)
	}
	defer f.Close()
	if _, err := f.WriteString(name); err != nil {
		return fmt.Errorf("powerlock: write %s: %w", file, err)
	}
	return nil
}

// Noop satisfies Resource on hosts without a wake lock facility.
type Noop struct{}

func (Noop) Acquire() error { return nil }

func (Noop) Release() error { return nil }
