package config

import (
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/policy"
	"github.com/twitter/herd/scheduler/server"
	"github.com/twitter/herd/scheduler/store"
	storemem "github.com/twitter/herd/scheduler/store/memory"
	storeredis "github.com/twitter/herd/scheduler/store/redis"
)

const (
	// Size of a memory cluster that lists no nodes.
	DefaultMemoryNodes = 10

	DefaultClusterRefresh = time.Minute
)

// JSONConfigs holds the sections of a herd configuration as read from JSON.
type JSONConfigs struct {
	Scheduler SchedulerJSONConfig `json:"Scheduler"`
	Policy    PolicyJSONConfig    `json:"Policy"`
	Store     StoreJSONConfig     `json:"Store"`
	Cluster   ClusterJSONConfig   `json:"Cluster"`
	LogLevel  string              `json:"LogLevel"` // default to info
}

func (c JSONConfigs) String() string {
	return fmt.Sprintf("\n%s\n%s\n%s\n%s\nLogLevel: %s", c.Scheduler, c.Policy, c.Store, c.Cluster, c.LogLevel)
}

// Level parses LogLevel, info when unset.
func (c JSONConfigs) Level() (log.Level, error) {
	if c.LogLevel == "" {
		return log.InfoLevel, nil
	}
	return log.ParseLevel(c.LogLevel)
}

// SchedulerJSONConfig mirrors server.SchedulerConfig with durations as strings like "500ms".
// Empty values take the server defaults.
type SchedulerJSONConfig struct {
	SchedulingTimeout    string  `json:"SchedulingTimeout"`
	LaunchTimeout        string  `json:"LaunchTimeout"`
	NodePingInterval     string  `json:"NodePingInterval"`
	ListenerTimeout      string  `json:"ListenerTimeout"`
	NodePingAttempts     int     `json:"NodePingAttempts"`
	ClientWorkers        int     `json:"ClientWorkers"`
	InternalWorkers      int     `json:"InternalWorkers"`
	LaunchWorkers        int     `json:"LaunchWorkers"`
	PingWorkers          int     `json:"PingWorkers"`
	RMReconnectAttempts  int     `json:"RMReconnectAttempts"`
	RMReconnectDelay     string  `json:"RMReconnectDelay"`
	AutoRemoveDelay      string  `json:"AutoRemoveDelay"`      // "0s" disables
	AutoRemoveErrorDelay string  `json:"AutoRemoveErrorDelay"` // "0s" disables
	RemovedJobDelay      string  `json:"RemovedJobDelay"`
	ResultCacheSize      int     `json:"ResultCacheSize"`
	JobLogLines          int     `json:"JobLogLines"`
	MaxPassesPerSecond   float64 `json:"MaxPassesPerSecond"`
}

func (sc SchedulerJSONConfig) String() string {
	return fmt.Sprintf("SchedulerJSONConfig: SchedulingTimeout: %s, LaunchTimeout: %s, NodePingInterval: %s, "+
		"ListenerTimeout: %s, NodePingAttempts: %d, RMReconnectAttempts: %d, RMReconnectDelay: %s, "+
		"AutoRemoveDelay: %s, AutoRemoveErrorDelay: %s, RemovedJobDelay: %s",
		sc.SchedulingTimeout, sc.LaunchTimeout, sc.NodePingInterval, sc.ListenerTimeout, sc.NodePingAttempts,
		sc.RMReconnectAttempts, sc.RMReconnectDelay, sc.AutoRemoveDelay, sc.AutoRemoveErrorDelay, sc.RemovedJobDelay)
}

// CreateSchedulerConfig converts the section. Unset removal delays keep the server defaults.
func (sc *SchedulerJSONConfig) CreateSchedulerConfig() (server.SchedulerConfig, error) {
	c := server.DefaultSchedulerConfig()
	durations := []struct {
		name string
		text string
		dst  *time.Duration
	}{
		{"SchedulingTimeout", sc.SchedulingTimeout, &c.SchedulingTimeout},
		{"LaunchTimeout", sc.LaunchTimeout, &c.LaunchTimeout},
		{"NodePingInterval", sc.NodePingInterval, &c.NodePingInterval},
		{"ListenerTimeout", sc.ListenerTimeout, &c.ListenerTimeout},
		{"RMReconnectDelay", sc.RMReconnectDelay, &c.RMReconnectDelay},
		{"AutoRemoveDelay", sc.AutoRemoveDelay, &c.AutoRemoveDelay},
		{"AutoRemoveErrorDelay", sc.AutoRemoveErrorDelay, &c.AutoRemoveErrorDelay},
		{"RemovedJobDelay", sc.RemovedJobDelay, &c.RemovedJobDelay},
	}
	for _, d := range durations {
		if d.text == "" {
			continue
		}
		v, err := time.ParseDuration(d.text)
		if err != nil {
			return c, errors.Wrapf(err, "parsing Scheduler.%s", d.name)
		}
		if v < 0 {
			return c, errors.Errorf("Scheduler.%s must not be negative, got %s", d.name, d.text)
		}
		*d.dst = v
	}

	setInt := func(dst *int, v int) {
		if v > 0 {
			*dst = v
		}
	}
	setInt(&c.NodePingAttempts, sc.NodePingAttempts)
	setInt(&c.ClientWorkers, sc.ClientWorkers)
	setInt(&c.InternalWorkers, sc.InternalWorkers)
	setInt(&c.LaunchWorkers, sc.LaunchWorkers)
	setInt(&c.PingWorkers, sc.PingWorkers)
	setInt(&c.RMReconnectAttempts, sc.RMReconnectAttempts)
	setInt(&c.ResultCacheSize, sc.ResultCacheSize)
	setInt(&c.JobLogLines, sc.JobLogLines)
	if sc.MaxPassesPerSecond > 0 {
		c.MaxPassesPerSecond = sc.MaxPassesPerSecond
	}
	return c, nil
}

// PolicyJSONConfig names the scheduling policy. With ConfigFile set the policy
// config is read from that YAML file and reloaded when it changes.
type PolicyJSONConfig struct {
	Name       string `json:"Name"`       // fifo, fairshare
	ConfigFile string `json:"ConfigFile"` // optional
	BatchSize  int    `json:"BatchSize"`  // default to policy.DefaultBatchSize
}

func (p PolicyJSONConfig) String() string {
	return fmt.Sprintf("PolicyJSONConfig: Name: %s, ConfigFile: %s, BatchSize: %d", p.Name, p.ConfigFile, p.BatchSize)
}

func (p *PolicyJSONConfig) CreateConfigs() policy.Configs {
	defaults := policy.DefaultConfig()
	if p.BatchSize != 0 {
		defaults.BatchSize = p.BatchSize
	}
	if p.ConfigFile != "" {
		return policy.NewConfigReloader(p.ConfigFile, defaults)
	}
	return policy.StaticConfigs(defaults)
}

type StoreJSONConfig struct {
	Type   string `json:"Type"`   // memory, redis
	Addr   string `json:"Addr"`   // redis only
	Prefix string `json:"Prefix"` // redis only, default to herd:
}

func (s StoreJSONConfig) String() string {
	return fmt.Sprintf("StoreJSONConfig: Type: %s, Addr: %s, Prefix: %s", s.Type, s.Addr, s.Prefix)
}

func (s *StoreJSONConfig) Create() (store.Store, error) {
	switch s.Type {
	case "memory":
		return storemem.NewStore(), nil
	case "redis":
		if s.Addr == "" {
			return nil, errors.New("redis store needs an Addr")
		}
		return storeredis.Dial(s.Addr, s.Prefix)
	}
	return nil, errors.Errorf("unknown store type %q", s.Type)
}

type NodeJSONConfig struct {
	Id     string            `json:"Id"`
	Labels map[string]string `json:"Labels"`
}

type ClusterJSONConfig struct {
	Type    string           `json:"Type"`    // memory, file
	Count   int              `json:"Count"`   // memory only, used when Nodes is empty, default to 10
	Nodes   []NodeJSONConfig `json:"Nodes"`   // memory only
	Path    string           `json:"Path"`    // file only, a JSON list of nodes
	Refresh string           `json:"Refresh"` // file only, default to 1m
}

func (c ClusterJSONConfig) String() string {
	return fmt.Sprintf("ClusterJSONConfig: Type: %s, Count: %d, Nodes: %d, Path: %s, Refresh: %s",
		c.Type, c.Count, len(c.Nodes), c.Path, c.Refresh)
}

// CreateNodes lists the initial cluster members.
func (c *ClusterJSONConfig) CreateNodes() ([]cluster.Node, error) {
	switch c.Type {
	case "memory":
	case "file":
		return (&cluster.FileFetcher{Path: c.Path}).Fetch()
	default:
		return nil, errors.Errorf("unknown cluster type %q", c.Type)
	}
	if len(c.Nodes) == 0 {
		count := c.Count
		if count <= 0 {
			count = DefaultMemoryNodes
		}
		return cluster.NewIdNodes(count), nil
	}
	seen := map[string]bool{}
	nodes := make([]cluster.Node, 0, len(c.Nodes))
	for _, n := range c.Nodes {
		if n.Id == "" || seen[n.Id] {
			return nil, errors.Errorf("cluster node id %q is empty or repeated", n.Id)
		}
		seen[n.Id] = true
		nodes = append(nodes, cluster.NewLabeledNode(n.Id, n.Labels))
	}
	return nodes, nil
}

// WatchMembers keeps following a file cluster, passing changes to apply. It returns
// nil for a memory cluster, whose membership is fixed.
func (c *ClusterJSONConfig) WatchMembers(initial []cluster.Node, apply func([]cluster.NodeUpdate)) (*cluster.FetchCron, error) {
	if c.Type != "file" {
		return nil, nil
	}
	refresh := DefaultClusterRefresh
	if c.Refresh != "" {
		d, err := time.ParseDuration(c.Refresh)
		if err != nil {
			return nil, errors.Wrap(err, "parsing Cluster.Refresh")
		}
		if d <= 0 {
			return nil, errors.Errorf("Cluster.Refresh must be positive, got %s", c.Refresh)
		}
		refresh = d
	}
	return cluster.NewFetchCron(&cluster.FileFetcher{Path: c.Path}, refresh, initial, apply), nil
}

// GetConfigText resolves a selector: the name of a built-in config, a path to a
// JSON file, or JSON text.
func GetConfigText(configSelector string) ([]byte, error) {
	if configText, ok := SchedulerConfigs[configSelector]; ok {
		return []byte(configText), nil
	}
	if strings.HasPrefix(strings.TrimSpace(configSelector), "{") {
		return []byte(configSelector), nil
	}
	if _, err := os.Stat(configSelector); err == nil {
		return ioutil.ReadFile(configSelector)
	}
	keys := make([]string, 0, len(SchedulerConfigs))
	for k := range SchedulerConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return nil, fmt.Errorf("invalid configuration %s, supported values are %v, a file or JSON text", configSelector, keys)
}

// GetConfig reads the selected config. Sections it leaves empty come from the
// "default" config.
func GetConfig(configSelector string) (*JSONConfigs, error) {
	defaultConfig := &JSONConfigs{}
	if err := json.Unmarshal([]byte(SchedulerConfigs["default"]), defaultConfig); err != nil {
		return nil, fmt.Errorf("couldn't parse the default config: %v", err)
	}

	configText, err := GetConfigText(configSelector)
	if err != nil {
		return nil, err
	}
	config := &JSONConfigs{}
	if err := json.Unmarshal(configText, config); err != nil {
		return nil, fmt.Errorf("couldn't parse top-level config: %v", err)
	}

	if config.Scheduler == (SchedulerJSONConfig{}) {
		log.Infof("using default Scheduler config")
		config.Scheduler = defaultConfig.Scheduler
	}
	if config.Policy.Name == "" {
		log.Infof("using default Policy config")
		config.Policy = defaultConfig.Policy
	}
	if config.Store.Type == "" {
		log.Infof("using default Store config")
		config.Store = defaultConfig.Store
	}
	if config.Cluster.Type == "" {
		log.Infof("using default Cluster config")
		config.Cluster = defaultConfig.Cluster
	}
	if config.LogLevel == "" {
		config.LogLevel = defaultConfig.LogLevel
	}
	return config, nil
}
