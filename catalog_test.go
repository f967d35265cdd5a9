package satrain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"
)

// mustKey parses a canonical key string or fails the test.
func mustKey(t *testing.T, s string) PartitionKey {
	t.Helper()
	k, err := ParsePartitionKey(s)
	if err != nil {
		t.Fatalf("ParsePartitionKey(%q) error = %v", s, err)
	}
	return k
}

func TestCumulativeSubsets(t *testing.T) {
	cases := map[string][]string{
		"xs": {"xs"},
		"m":  {"xs", "s", "m"},
		"xl": {"xs", "s", "m", "l", "xl"},
	}
	for subset, want := range cases {
		if got := CumulativeSubsets(subset); !reflect.DeepEqual(got, want) {
			t.Errorf("CumulativeSubsets(%q) = %v, want %v", subset, got, want)
		}
	}
	if got := CumulativeSubsets("huge"); got != nil {
		t.Errorf("CumulativeSubsets(unknown) = %v, want nil", got)
	}
}

func TestValidateKey(t *testing.T) {
	t.Run("valid keys", func(t *testing.T) {
		for _, s := range []string{
			"gmi/training/xs/gridded/spatial/gmi",
			"gmi/training/xl/on_swath/tabular/target",
			"atms/validation/s/gridded/spatial/geo_ir_t",
			"gmi/testing/austria/gridded/spatial/ancillary",
			"atms/testing/korea/on_swath/spatial/target",
			"gmi/evaluation/conus/gridded/spatial/geo",
		} {
			if err := validateKey(mustKey(t, s)); err != nil {
				t.Errorf("validateKey(%s) error = %v, want nil", s, err)
			}
		}
	})

	t.Run("sensor source mismatch", func(t *testing.T) {
		k := PartitionKey{Sensor: "gmi", Split: "training", Subset: "xs", Geometry: "gridded", Format: "spatial", Source: "atms"}
		if err := validateKey(k); !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("error = %v, want ErrInvalidPartition", err)
		}
	})

	t.Run("domain on training split", func(t *testing.T) {
		k := PartitionKey{Sensor: "gmi", Split: "training", Domain: "conus", Subset: "xs", Geometry: "gridded", Format: "spatial", Source: "target"}
		if err := validateKey(k); !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("error = %v, want ErrInvalidPartition", err)
		}
	})

	t.Run("austria is testing-only", func(t *testing.T) {
		k := PartitionKey{Sensor: "gmi", Split: "evaluation", Domain: "austria", Geometry: "gridded", Format: "spatial", Source: "target"}
		if err := validateKey(k); !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("error = %v, want ErrInvalidPartition", err)
		}
	})

	t.Run("tabular is training and validation only", func(t *testing.T) {
		k := PartitionKey{Sensor: "gmi", Split: "testing", Domain: "conus", Geometry: "gridded", Format: "tabular", Source: "target"}
		if err := validateKey(k); !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("error = %v, want ErrInvalidPartition", err)
		}
	})
}

func TestValidKeys(t *testing.T) {
	t.Run("fully specified filter", func(t *testing.T) {
		keys, err := ValidKeys(Filters{
			Sensors:    []string{"gmi"},
			Splits:     []string{"training"},
			Subset:     "s",
			Geometries: []string{"gridded"},
			Sources:    []string{"ancillary"},
			Formats:    []string{"spatial"},
		})
		if err != nil {
			t.Fatalf("ValidKeys() error = %v", err)
		}
		want := []PartitionKey{mustKey(t, "gmi/training/s/gridded/spatial/ancillary")}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("ValidKeys() = %v, want %v", keys, want)
		}
	})

	t.Run("expansion is the product of selections", func(t *testing.T) {
		keys, err := ValidKeys(Filters{
			Sensors:    []string{"gmi", "atms"},
			Splits:     []string{"training", "validation"},
			Geometries: []string{"gridded"},
			Sources:    []string{"target"},
			Formats:    []string{"spatial"},
		})
		if err != nil {
			t.Fatalf("ValidKeys() error = %v", err)
		}
		// 2 sensors x 2 splits, subset defaulting to xl.
		if len(keys) != 4 {
			t.Fatalf("len(keys) = %d, want 4", len(keys))
		}
		for _, k := range keys {
			if k.Subset != DefaultSubset {
				t.Errorf("key %s: subset %q, want %q", k, k.Subset, DefaultSubset)
			}
		}
	})

	t.Run("sensor-mismatched sources are dropped", func(t *testing.T) {
		keys, err := ValidKeys(Filters{
			Sensors:    []string{"gmi"},
			Splits:     []string{"training"},
			Geometries: []string{"gridded"},
			Formats:    []string{"spatial"},
		})
		if err != nil {
			t.Fatalf("ValidKeys() error = %v", err)
		}
		for _, k := range keys {
			if k.Source == "atms" {
				t.Errorf("gmi expansion produced source atms: %s", k)
			}
		}
	})

	t.Run("sorted deterministically", func(t *testing.T) {
		keys, err := ValidKeys(Filters{Sensors: []string{"gmi"}, Splits: []string{"testing"}, Sources: []string{"target"}})
		if err != nil {
			t.Fatalf("ValidKeys() error = %v", err)
		}
		for i := 1; i < len(keys); i++ {
			if keys[i-1].String() >= keys[i].String() {
				t.Fatalf("keys not sorted: %s before %s", keys[i-1], keys[i])
			}
		}
	})

	t.Run("unrecognized value", func(t *testing.T) {
		_, err := ValidKeys(Filters{Sensors: []string{"foo"}})
		if !errors.Is(err, ErrInvalidPartition) {
			t.Fatalf("error = %v, want ErrInvalidPartition", err)
		}
		if !strings.Contains(err.Error(), `"foo"`) || !strings.Contains(err.Error(), "gmi") {
			t.Errorf("error %q should name the offending value and the recognized set", err)
		}
	})

	t.Run("unrecognized subset", func(t *testing.T) {
		_, err := ValidKeys(Filters{Subset: "huge"})
		if !errors.Is(err, ErrInvalidPartition) {
			t.Errorf("error = %v, want ErrInvalidPartition", err)
		}
	})

	t.Run("empty intersection", func(t *testing.T) {
		// Valid-looking, but domains never pair with training.
		_, err := ValidKeys(Filters{Splits: []string{"training"}, Domains: []string{"austria"}})
		if !errors.Is(err, ErrEmptyIntersection) {
			t.Errorf("error = %v, want ErrEmptyIntersection", err)
		}
	})

	t.Run("no filters covers every valid combination", func(t *testing.T) {
		keys, err := ValidKeys(Filters{})
		if err != nil {
			t.Fatalf("ValidKeys() error = %v", err)
		}
		for _, k := range keys {
			if err := validateKey(k); err != nil {
				t.Errorf("expansion produced invalid key %s: %v", k, err)
			}
		}
		seen := map[PartitionKey]bool{}
		for _, k := range keys {
			if seen[k] {
				t.Errorf("duplicate key %s", k)
			}
			seen[k] = true
		}
	})
}

// testEntry builds an index entry from a canonical key string.
func testEntry(t *testing.T, keyStr, path string, size int64) indexEntry {
	t.Helper()
	k := mustKey(t, keyStr)
	return indexEntry{
		Sensor:   k.Sensor,
		Split:    k.Split,
		Subset:   k.Subset,
		Domain:   k.Domain,
		Geometry: k.Geometry,
		Format:   k.Format,
		Source:   k.Source,
		Path:     path,
		Size:     size,
	}
}

func TestCatalog(t *testing.T) {
	t.Run("groups entries by key", func(t *testing.T) {
		entries := []indexEntry{
			testEntry(t, "gmi/training/xs/gridded/spatial/target", "gmi/training/xs/gridded/spatial/target_b.nc", 10),
			testEntry(t, "gmi/training/xs/gridded/spatial/target", "gmi/training/xs/gridded/spatial/target_a.nc", 10),
			testEntry(t, "gmi/testing/conus/gridded/spatial/target", "gmi/testing/conus/gridded/spatial/target_c.nc", 20),
		}
		cat := newCatalog(entries)

		files := cat.Files(mustKey(t, "gmi/training/xs/gridded/spatial/target"))
		if len(files) != 2 {
			t.Fatalf("len(files) = %d, want 2", len(files))
		}
		if files[0].Path >= files[1].Path {
			t.Errorf("files not sorted: %v", files)
		}
		if got := cat.ExpectedFileCount(mustKey(t, "gmi/testing/conus/gridded/spatial/target")); got != 1 {
			t.Errorf("ExpectedFileCount() = %d, want 1", got)
		}
	})

	t.Run("cumulative subsets union smaller tiers", func(t *testing.T) {
		var entries []indexEntry
		for _, subset := range []string{"xs", "s", "m"} {
			key := fmt.Sprintf("gmi/training/%s/gridded/spatial/target", subset)
			path := fmt.Sprintf("gmi/training/%s/gridded/spatial/target_%s.nc", subset, subset)
			entries = append(entries, testEntry(t, key, path, 1))
		}
		cat := newCatalog(entries)

		if got := cat.ExpectedFileCount(mustKey(t, "gmi/training/xs/gridded/spatial/target")); got != 1 {
			t.Errorf("xs count = %d, want 1", got)
		}
		if got := cat.ExpectedFileCount(mustKey(t, "gmi/training/m/gridded/spatial/target")); got != 3 {
			t.Errorf("m count = %d, want 3", got)
		}
		// xl subsumes everything even with no files of its own.
		if got := cat.ExpectedFileCount(mustKey(t, "gmi/training/xl/gridded/spatial/target")); got != 3 {
			t.Errorf("xl count = %d, want 3", got)
		}
	})

	t.Run("entries outside the schema are skipped", func(t *testing.T) {
		entries := []indexEntry{
			{Sensor: "noaa99", Split: "training", Subset: "xs", Geometry: "gridded", Format: "spatial", Source: "target", Path: "x.nc", Size: 1},
			testEntry(t, "gmi/training/xs/gridded/spatial/target", "gmi/training/xs/gridded/spatial/target_a.nc", 1),
		}
		cat := newCatalog(entries)
		if got := len(cat.files); got != 1 {
			t.Errorf("catalog kept %d keys, want 1", got)
		}
	})

	t.Run("missing key has no files", func(t *testing.T) {
		cat := newCatalog(nil)
		if got := cat.ExpectedFileCount(mustKey(t, "gmi/training/xs/gridded/spatial/target")); got != 0 {
			t.Errorf("ExpectedFileCount() = %d, want 0", got)
		}
	})
}
