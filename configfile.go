package satrain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	yaml "gopkg.in/yaml.v3"
)

// EnvDataPath is the environment variable overriding the persisted data
// root (tier 2 in the resolution order).
const EnvDataPath = "DATA_PATH"

// configFileName is the persisted config file inside the config dir.
const configFileName = "config.yaml"

// configLockTimeout bounds how long a writer waits for the cross-process
// config lock.
const configLockTimeout = 10 * time.Second

// persistedConfig is the on-disk schema of the config file. The file
// survives package upgrades, so decoding must tolerate unknown keys;
// yaml.Unmarshal into a struct does exactly that.
type persistedConfig struct {
	// DataPath is the persisted local data root.
	DataPath string `yaml:"data_path"`
}

// configStore reads and writes the persisted configuration file.
type configStore struct {
	// dir is the directory holding the config file.
	dir string
}

// newConfigStore resolves the config directory. An empty dir selects
// <user config dir>/satrain. The directory is not created until the first
// write.
func newConfigStore(dir string) (*configStore, error) {
	if dir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("%w: no user config dir: %v", ErrStorage, err)
		}
		dir = filepath.Join(base, "satrain")
	}
	return &configStore{dir: dir}, nil
}

// path returns the config file path.
func (s *configStore) path() string {
	return filepath.Join(s.dir, configFileName)
}

// load reads the persisted config. A missing file yields the zero value.
func (s *configStore) load() (persistedConfig, error) {
	var cfg persistedConfig
	data, err := os.ReadFile(s.path())
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return persistedConfig{}, fmt.Errorf("%w: invalid %s: %v", ErrStorage, configFileName, err)
	}
	return cfg, nil
}

// saveDataPath persists the data root. The write is guarded by a
// cross-process file lock and lands via write-temp-then-rename, so an
// interrupted process never leaves a corrupt config file behind.
// Failures are reported as ErrConfigPersist.
func (s *configStore) saveDataPath(dataPath string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("%w: creating config dir: %v", ErrConfigPersist, err)
	}

	lock, err := newFileLock(s.path()+".lock", configLockTimeout)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	defer lock.Unlock()

	// Re-read under the lock so unrelated keys written by a newer version
	// survive a round trip through this one.
	raw := map[string]any{}
	if data, err := os.ReadFile(s.path()); err == nil {
		// A malformed existing file is overwritten rather than preserved.
		_ = yaml.Unmarshal(data, &raw)
	}
	raw["data_path"] = dataPath

	data, err := yaml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	if err := atomicWrite(s.path(), data); err != nil {
		return fmt.Errorf("%w: %v", ErrConfigPersist, err)
	}
	return nil
}

// resolveDataRoot determines the effective data root and the precedence
// tier that produced it. The explicit argument wins over the environment,
// which wins over the persisted file; the fallback is the current working
// directory. Resolution never fails on a missing or unreadable config
// file; only an unreadable working directory is an error.
func (s *configStore) resolveDataRoot(explicit string) (string, Tier, error) {
	if explicit != "" {
		return explicit, TierArgument, nil
	}
	if env := os.Getenv(EnvDataPath); env != "" {
		return env, TierEnvironment, nil
	}
	if cfg, err := s.load(); err == nil && cfg.DataPath != "" {
		return cfg.DataPath, TierConfigFile, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", TierDefault, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	return wd, TierDefault, nil
}

// atomicWrite writes data to path via a temp file in the same directory
// and an atomic rename.
func atomicWrite(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) // cleanup on failure
		return err
	}
	return nil
}
