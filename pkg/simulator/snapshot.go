package simulator

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
	"s7link/pkg/storage"
)

const snapshotExt = ".bin"

// snapshotKey names one area, e.g. "84-1.bin" for DB1 and "83-0.bin" for
// the flags.
func snapshotKey(key areaKey) string {
	return fmt.Sprintf("%02x-%d%s", key.area, key.dbNumber, snapshotExt)
}

func parseSnapshotKey(name string) (areaKey, bool) {
	if !strings.HasSuffix(name, snapshotExt) {
		return areaKey{}, false
	}
	var key areaKey
	if _, err := fmt.Sscanf(strings.TrimSuffix(name, snapshotExt), "%02x-%d", &key.area, &key.dbNumber); err != nil {
		return areaKey{}, false
	}
	return key, true
}

// Save writes every memory area to s.
func (d *Device) Save(s storage.Putter) error {
	d.mu.Lock()
	areas := make(map[areaKey][]byte, len(d.memory.areas))
	for key, b := range d.memory.areas {
		areas[key] = append([]byte(nil), b...)
	}
	d.mu.Unlock()

	for key, b := range areas {
		if err := s.Put(snapshotKey(key), b); err != nil {
			return errors.Wrapf(err, "save area %s", snapshotKey(key))
		}
	}
	klog.V(2).InfoS("Saved simulated memory", "areas", len(areas))
	return nil
}

// Load replaces the areas found in s. Unknown keys are skipped.
func (d *Device) Load(s storage.Reader) error {
	names, err := s.List()
	if err != nil {
		return err
	}
	loaded := make(map[areaKey][]byte, len(names))
	for _, name := range names {
		key, ok := parseSnapshotKey(name)
		if !ok {
			klog.V(4).InfoS("Skipped snapshot file", "name", name)
			continue
		}
		b, err := s.Get(name)
		if err != nil {
			return errors.Wrapf(err, "load area %s", name)
		}
		if len(b) > areaLimit {
			return errors.Errorf("area %s holds %d bytes", name, len(b))
		}
		loaded[key] = b
	}

	d.mu.Lock()
	for key, b := range loaded {
		d.memory.areas[key] = b
	}
	d.mu.Unlock()
	klog.V(2).InfoS("Loaded simulated memory", "areas", len(loaded))
	return nil
}
