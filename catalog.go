package satrain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// Split names.
const (
	SplitTraining   = "training"
	SplitValidation = "validation"
	SplitTesting    = "testing"
	SplitEvaluation = "evaluation"
)

// Recognized values per dimension. These are the catalog's schema; a
// filter naming anything else is rejected with ErrInvalidPartition.
var (
	// Sensors are the reference sensors.
	Sensors = []string{"gmi", "atms"}

	// Splits are the data splits.
	Splits = []string{SplitTraining, SplitValidation, SplitTesting, SplitEvaluation}

	// Subsets are the cumulative size tiers, smallest first. Each subset
	// subsumes all preceding ones as a set of files.
	Subsets = []string{"xs", "s", "m", "l", "xl"}

	// Domains are the spatial domains of the testing and evaluation
	// splits.
	Domains = []string{"conus", "austria", "korea"}

	// Geometries are the spatial representations.
	Geometries = []string{"on_swath", "gridded"}

	// Sources are the input sources. The reference-sensor source of a key
	// always matches the key's sensor.
	Sources = []string{"gmi", "atms", "geo", "geo_t", "geo_ir", "geo_ir_t", "ancillary", "target"}

	// Formats are the file layouts.
	Formats = []string{"spatial", "tabular"}
)

// DefaultSubset is the subset used when a request does not name one.
// Being the largest cumulative tier it spans the whole split.
const DefaultSubset = "xl"

// CumulativeSubsets returns the given subset and every smaller one,
// smallest first. These are the physical directories whose files count
// toward the subset's completeness.
func CumulativeSubsets(subset string) []string {
	idx := slices.Index(Subsets, subset)
	if idx < 0 {
		return nil
	}
	return Subsets[:idx+1]
}

// sourcesFor returns the valid sources for a reference sensor: the sensor
// itself plus the shared geostationary, ancillary, and target sources.
func sourcesFor(sensor string) []string {
	out := []string{sensor}
	for _, s := range Sources {
		if s != "gmi" && s != "atms" {
			out = append(out, s)
		}
	}
	return out
}

// domainsFor returns the valid domains for a split. The austria and korea
// domains exist only for the testing split; evaluation covers conus.
func domainsFor(split string) []string {
	switch split {
	case SplitTesting:
		return Domains
	case SplitEvaluation:
		return []string{"conus"}
	}
	return nil
}

// formatsFor returns the valid formats for a split. Tabular data exists
// only for the training and validation splits.
func formatsFor(split string) []string {
	switch split {
	case SplitTraining, SplitValidation:
		return Formats
	}
	return []string{"spatial"}
}

// validateKey checks a fully specified key against the catalog schema.
func validateKey(k PartitionKey) error {
	if !slices.Contains(Sensors, k.Sensor) {
		return invalidValue("sensor", k.Sensor, Sensors)
	}
	if !slices.Contains(Splits, k.Split) {
		return invalidValue("split", k.Split, Splits)
	}
	switch k.Split {
	case SplitTraining, SplitValidation:
		if k.Domain != "" {
			return fmt.Errorf("%w: split %q takes no domain", ErrInvalidPartition, k.Split)
		}
		if !slices.Contains(Subsets, k.Subset) {
			return invalidValue("subset", k.Subset, Subsets)
		}
	default:
		if k.Subset != "" {
			return fmt.Errorf("%w: split %q takes no subset", ErrInvalidPartition, k.Split)
		}
		if !slices.Contains(domainsFor(k.Split), k.Domain) {
			return invalidValue("domain", k.Domain, domainsFor(k.Split))
		}
	}
	if !slices.Contains(Geometries, k.Geometry) {
		return invalidValue("geometry", k.Geometry, Geometries)
	}
	if !slices.Contains(formatsFor(k.Split), k.Format) {
		return invalidValue("format", k.Format, formatsFor(k.Split))
	}
	if !slices.Contains(sourcesFor(k.Sensor), k.Source) {
		return invalidValue("source", k.Source, sourcesFor(k.Sensor))
	}
	return nil
}

func invalidValue(dim, value string, recognized []string) error {
	return fmt.Errorf("%w: %s %q (recognized: %s)",
		ErrInvalidPartition, dim, value, strings.Join(recognized, ", "))
}

// checkFilterValues rejects filter values outside the recognized set for
// their dimension. Cross-dimension consistency (e.g. a source that never
// pairs with the selected sensors) is not an error here; it surfaces as an
// empty intersection during expansion.
func checkFilterValues(f Filters) error {
	checks := []struct {
		dim        string
		values     []string
		recognized []string
	}{
		{"sensor", f.Sensors, Sensors},
		{"split", f.Splits, Splits},
		{"domain", f.Domains, Domains},
		{"geometry", f.Geometries, Geometries},
		{"source", f.Sources, Sources},
		{"format", f.Formats, Formats},
	}
	for _, c := range checks {
		for _, v := range c.values {
			if !slices.Contains(c.recognized, v) {
				return invalidValue(c.dim, v, c.recognized)
			}
		}
	}
	if f.Subset != "" && !slices.Contains(Subsets, f.Subset) {
		return invalidValue("subset", f.Subset, Subsets)
	}
	return nil
}

// orDefault substitutes the full recognized set for an empty filter.
func orDefault(values, all []string) []string {
	if len(values) == 0 {
		return all
	}
	return values
}

// ValidKeys expands partial filters into every valid fully specified
// partition key: the Cartesian product of the selections intersected with
// the catalog's validity predicate. The result is sorted by key string.
//
// Returns ErrInvalidPartition when a filter value is outside its
// dimension's recognized set, and ErrEmptyIntersection when the expansion
// yields no valid keys (e.g. domain "austria" with split "training").
// Callers should treat the latter as a warning, not a failure.
func ValidKeys(f Filters) ([]PartitionKey, error) {
	if err := checkFilterValues(f); err != nil {
		return nil, err
	}

	subset := f.Subset
	if subset == "" {
		subset = DefaultSubset
	}

	var keys []PartitionKey
	for _, sensor := range orDefault(f.Sensors, Sensors) {
		for _, split := range orDefault(f.Splits, Splits) {
			tiers := []string{subset}
			domainTier := false
			if split == SplitTesting || split == SplitEvaluation {
				tiers = orDefault(f.Domains, domainsFor(split))
				domainTier = true
			} else if len(f.Domains) > 0 {
				// Explicit domains never match subset-addressed splits.
				continue
			}
			for _, tier := range tiers {
				for _, geometry := range orDefault(f.Geometries, Geometries) {
					for _, format := range orDefault(f.Formats, formatsFor(split)) {
						for _, source := range orDefault(f.Sources, sourcesFor(sensor)) {
							k := PartitionKey{
								Sensor:   sensor,
								Split:    split,
								Geometry: geometry,
								Format:   format,
								Source:   source,
							}
							if domainTier {
								k.Domain = tier
							} else {
								k.Subset = tier
							}
							if validateKey(k) == nil {
								keys = append(keys, k)
							}
						}
					}
				}
			}
		}
	}

	if len(keys) == 0 {
		return nil, ErrEmptyIntersection
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys, nil
}

// indexEntry is one file record in the dataset index (files.json) served
// at the dataset base URL. Unknown fields are ignored on decode so the
// index format can grow without breaking older clients.
type indexEntry struct {
	Sensor   string `json:"sensor"`
	Split    string `json:"split"`
	Subset   string `json:"subset,omitempty"`
	Domain   string `json:"domain,omitempty"`
	Geometry string `json:"geometry"`
	Format   string `json:"format"`
	Source   string `json:"source"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
}

// key maps the entry onto its partition key.
func (e indexEntry) key() PartitionKey {
	return PartitionKey{
		Sensor:   e.Sensor,
		Split:    e.Split,
		Subset:   e.Subset,
		Domain:   e.Domain,
		Geometry: e.Geometry,
		Format:   e.Format,
		Source:   e.Source,
	}
}

// Catalog maps valid partition keys to their remote files. It is built
// once per invocation from the dataset index and never mutated.
type Catalog struct {
	// files groups index entries by their physical (non-cumulative) key.
	files map[PartitionKey][]FileInfo
}

// newCatalog groups index entries by key. Entries that do not validate
// against the current schema are skipped: the server may already list
// partitions a newer client version understands.
func newCatalog(entries []indexEntry) *Catalog {
	c := &Catalog{files: make(map[PartitionKey][]FileInfo)}
	for _, e := range entries {
		k := e.key()
		if validateKey(k) != nil || e.Path == "" {
			continue
		}
		c.files[k] = append(c.files[k], FileInfo{Path: e.Path, Size: e.Size})
	}
	for k := range c.files {
		sort.Slice(c.files[k], func(i, j int) bool { return c.files[k][i].Path < c.files[k][j].Path })
	}
	return c
}

// Files returns the remote files of a key, sorted by path. For
// training/validation keys this is the cumulative union across the key's
// subset and all smaller ones.
func (c *Catalog) Files(key PartitionKey) []FileInfo {
	if key.Subset == "" {
		return c.files[key]
	}
	var out []FileInfo
	for _, subset := range CumulativeSubsets(key.Subset) {
		k := key
		k.Subset = subset
		out = append(out, c.files[k]...)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// ExpectedFileCount returns the number of files the catalog expects for a
// key. Used to detect partial or corrupt local downloads.
func (c *Catalog) ExpectedFileCount(key PartitionKey) int {
	return len(c.Files(key))
}
