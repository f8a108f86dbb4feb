package disks

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/facette/natsort"

	"preclear_disk/internal/config"
	"preclear_disk/internal/logging"
	"preclear_disk/internal/security"
)

var partitionSuffixRe = regexp.MustCompile(`-part\d+$`)

// Device is an unassigned whole disk. It is recomputed on every enumeration.
type Device struct {
	// Key is the stable by-id path of the disk.
	Key string `json:"key"`
	// Path is the resolved device node, e.g. /dev/sdb.
	Path string `json:"device"`
	// Partitions lists the by-id partition aliases of the disk; empty for an
	// unformatted disk.
	Partitions []string `json:"partitions"`
}

// Name returns the kernel device name, e.g. "sdb".
func (d Device) Name() string {
	return filepath.Base(d.Path)
}

// Enumerator discovers disks that are not claimed by the array, the cache
// device or the boot device.
type Enumerator struct {
	cfg    *config.Config
	logger *logging.EnterpriseLogger
}

func NewEnumerator(cfg *config.Config, logger *logging.EnterpriseLogger) *Enumerator {
	return &Enumerator{cfg: cfg, logger: logger}
}

// ListUnassigned returns unassigned whole disks in natural order of their
// by-id keys. Partition aliases and WWN aliases never appear as entries.
func (e *Enumerator) ListUnassigned() ([]Device, error) {
	paths, err := listFiles(e.cfg.Paths.ByIDDir)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", e.cfg.Paths.ByIDDir, err)
	}

	excluded := e.exclusions(paths)

	var candidates []string
	for _, p := range paths {
		base := filepath.Base(p)
		if strings.Contains(base, "wwn-") || partitionSuffixRe.MatchString(base) {
			continue
		}
		if matchesAny(base, excluded) || security.ShouldSkipDisk(e.cfg, p) {
			continue
		}
		candidates = append(candidates, p)
	}
	natsort.Sort(candidates)

	devices := make([]Device, 0, len(candidates))
	for _, disk := range candidates {
		real, err := filepath.EvalSymlinks(disk)
		if err != nil {
			e.logger.Log("DEBUG", "dropping unresolvable disk alias", "path", disk, "error", err.Error())
			continue
		}
		if !e.supportedClass(real) {
			continue
		}

		devices = append(devices, Device{
			Key:        disk,
			Path:       real,
			Partitions: partitionsOf(disk, paths),
		})
	}

	return devices, nil
}

// exclusions collects serial strings of every claimed device: the array
// superblock string table, the cache device ids and the aliases of the boot
// device.
func (e *Enumerator) exclusions(paths []string) []string {
	var serials []string
	serials = append(serials, SuperblockSerials(e.cfg.Paths.SuperDat)...)
	serials = append(serials, CacheSerials(e.cfg.Paths.DiskCfg)...)
	serials = append(serials, bootAliases(paths, e.cfg.Paths.BootLabelPath)...)
	return serials
}

func (e *Enumerator) supportedClass(real string) bool {
	for _, class := range e.cfg.Preclear.DeviceClasses {
		if strings.Contains(real, class) {
			return true
		}
	}
	return false
}

// bootAliases returns the base names of all by-id entries that resolve to the
// boot device or to the disk holding it.
func bootAliases(paths []string, labelPath string) []string {
	flash, err := filepath.EvalSymlinks(labelPath)
	if err != nil {
		return nil
	}

	var out []string
	for _, p := range paths {
		real, err := filepath.EvalSymlinks(p)
		if err != nil {
			continue
		}
		if real == flash || isPartitionOf(flash, real) {
			out = append(out, filepath.Base(p))
		}
	}
	return out
}

// isPartitionOf reports whether part is a partition node of disk, e.g.
// /dev/sda1 of /dev/sda or /dev/nvme0n1p2 of /dev/nvme0n1.
func isPartitionOf(part, disk string) bool {
	if !strings.HasPrefix(part, disk) {
		return false
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(part, disk), "p")
	if rest == "" {
		return false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func partitionsOf(disk string, paths []string) []string {
	parts := []string{}
	prefix := disk + "-part"
	for _, p := range paths {
		if strings.HasPrefix(p, prefix) && partitionSuffixRe.MatchString(p[len(disk):]) {
			parts = append(parts, p)
		}
	}
	natsort.Sort(parts)
	return parts
}

func matchesAny(base string, serials []string) bool {
	for _, serial := range serials {
		if serial != "" && strings.Contains(base, serial) {
			return true
		}
	}
	return false
}

// listFiles walks root recursively and returns every non-directory entry.
// Unreadable subdirectories are skipped.
func listFiles(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
