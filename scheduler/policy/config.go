package policy

import (
	"io/ioutil"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

const (
	DefaultBatchSize      = 100
	DefaultReloadInterval = 30 * time.Second
)

// Config tunes a policy. A non-positive BatchSize means no limit.
type Config struct {
	BatchSize      int           `yaml:"batchSize"`
	ReloadInterval time.Duration `yaml:"reloadInterval"`
}

func DefaultConfig() Config {
	return Config{BatchSize: DefaultBatchSize, ReloadInterval: DefaultReloadInterval}
}

// Configs gives a policy its current config.
type Configs interface {
	Config() Config
}

type StaticConfigs Config

func (c StaticConfigs) Config() Config { return Config(c) }

// ConfigReloader reads the policy config from a YAML file. The file is looked at
// again at most every ReloadInterval and only parsed when its modification time changed.
// A file that cannot be read or parsed leaves the previous config in place.
type ConfigReloader struct {
	mu        sync.Mutex
	path      string
	cfg       Config
	defaults  Config
	modTime   time.Time
	lastCheck time.Time
	now       func() time.Time
}

func NewConfigReloader(path string, defaults Config) *ConfigReloader {
	r := &ConfigReloader{path: path, cfg: defaults, defaults: defaults, now: time.Now}
	if path != "" {
		if err := r.Reload(); err != nil {
			log.WithError(err).WithFields(log.Fields{"path": path}).Warn("Using default policy config")
		}
	}
	return r
}

func (r *ConfigReloader) Config() Config {
	r.mu.Lock()
	due := r.path != "" && r.now().Sub(r.lastCheck) >= r.cfg.ReloadInterval
	r.mu.Unlock()
	if due {
		if err := r.Reload(); err != nil {
			log.WithError(err).WithFields(log.Fields{"path": r.path}).Warn("Keeping previous policy config")
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// Reload re-reads the file if it changed since the last successful read.
func (r *ConfigReloader) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCheck = r.now()
	if r.path == "" {
		return nil
	}
	info, err := os.Stat(r.path)
	if err != nil {
		return errors.Wrapf(err, "checking policy config %s", r.path)
	}
	if info.ModTime().Equal(r.modTime) {
		return nil
	}
	data, err := ioutil.ReadFile(r.path)
	if err != nil {
		return errors.Wrapf(err, "reading policy config %s", r.path)
	}
	cfg := r.defaults
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return errors.Wrapf(err, "parsing policy config %s", r.path)
	}
	if cfg.ReloadInterval < 0 {
		return errors.Errorf("negative reload interval in %s", r.path)
	}
	r.cfg = cfg
	r.modTime = info.ModTime()
	log.WithFields(log.Fields{"path": r.path, "batchSize": cfg.BatchSize, "reloadInterval": cfg.ReloadInterval}).Info("Loaded policy config")
	return nil
}
