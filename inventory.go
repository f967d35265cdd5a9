package satrain

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// dataFileExt is the extension of dataset files.
const dataFileExt = ".nc"

// scanner reports local inventory for partition keys by walking the data
// root. It is a pure read: it never downloads, deletes, or persists an
// index, so it cannot go stale against out-of-band file removal.
type scanner struct {
	// dataRoot is the local directory tree being scanned.
	dataRoot string
}

// newScanner creates a scanner over the given data root.
func newScanner(dataRoot string) *scanner {
	return &scanner{dataRoot: dataRoot}
}

// sourceOf extracts the source prefix of a data file name
// "<source>_<timestamp>.nc". Source names themselves contain underscores
// (geo_ir_t), so the longest recognized prefix wins.
func sourceOf(name string) (string, bool) {
	if !strings.HasSuffix(name, dataFileExt) {
		return "", false
	}
	best := ""
	for _, s := range Sources {
		if len(s) > len(best) && strings.HasPrefix(name, s+"_") {
			best = s
		}
	}
	return best, best != ""
}

// matchesSource reports whether a file name belongs to a source.
func matchesSource(name, source string) bool {
	s, ok := sourceOf(name)
	return ok && s == source
}

// scanKey collects the locally present files of one key. Subsets are
// cumulative folders on disk, so a training/validation key is scanned
// across its own subset directory and every smaller one.
func (s *scanner) scanKey(key PartitionKey) (InventoryRecord, error) {
	rec := InventoryRecord{Key: key, Expected: -1}

	dirs := []string{key.Dir()}
	if key.Subset != "" {
		dirs = dirs[:0]
		for _, subset := range CumulativeSubsets(key.Subset) {
			k := key
			k.Subset = subset
			dirs = append(dirs, k.Dir())
		}
	}

	for _, dir := range dirs {
		root := filepath.Join(s.dataRoot, filepath.FromSlash(dir))
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !matchesSource(d.Name(), key.Source) {
				return nil
			}
			rel, err := filepath.Rel(s.dataRoot, path)
			if err != nil {
				return err
			}
			rec.Files = append(rec.Files, filepath.ToSlash(rel))
			return nil
		})
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return InventoryRecord{}, fmt.Errorf("%w: scanning %s: %v", ErrStorage, dir, err)
		}
	}

	sort.Strings(rec.Files)
	return rec, nil
}

// scan collects inventory records for the requested keys, in request
// order.
func (s *scanner) scan(keys []PartitionKey) ([]InventoryRecord, error) {
	records := make([]InventoryRecord, 0, len(keys))
	for _, key := range keys {
		rec, err := s.scanKey(key)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// discoverKeys walks the whole data root and returns every partition key
// with at least one local file. Path components and source prefixes that
// do not validate against the catalog schema are ignored: the scanner
// reports only keys the catalog recognizes.
func (s *scanner) discoverKeys() ([]PartitionKey, error) {
	seen := map[PartitionKey]bool{}

	err := filepath.WalkDir(s.dataRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), dataFileExt) {
			return nil
		}
		rel, err := filepath.Rel(s.dataRoot, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		if len(parts) < 6 {
			return nil
		}
		source, ok := sourceOf(d.Name())
		if !ok {
			return nil
		}
		key, err := ParsePartitionKey(strings.Join(append(parts[:5:5], source), "/"))
		if err != nil {
			return nil
		}
		seen[key] = true
		return nil
	})
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: scanning %s: %v", ErrStorage, s.dataRoot, err)
	}

	keys := make([]PartitionKey, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}
