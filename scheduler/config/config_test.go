package config

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/policy"
	"github.com/twitter/herd/scheduler/server"
	storemem "github.com/twitter/herd/scheduler/store/memory"
	storeredis "github.com/twitter/herd/scheduler/store/redis"
)

// Tests to ensure config is properly specified
// and that they parse correctly
func TestGettingConfigurations(t *testing.T) {
	for configSelector := range SchedulerConfigs {
		config, err := GetConfig(configSelector)
		require.Nil(t, err, fmt.Sprintf("error getting config %s: %v", configSelector, err))
		_, err = config.Scheduler.CreateSchedulerConfig()
		assert.NoError(t, err, configSelector)
		_, err = config.Cluster.CreateNodes()
		assert.NoError(t, err, configSelector)
		_, err = config.Level()
		assert.NoError(t, err, configSelector)
	}

	selector := "invalid.selector"
	config, err := GetConfig(selector)
	assert.NotNil(t, err, fmt.Sprintf("configuration returned for %s: %s", selector, config))
}

// TestDefaultSectionsFillGaps checks that sections missing from the selected config
// come from the default config.
func TestDefaultSectionsFillGaps(t *testing.T) {
	config, err := GetConfig("local.redis")
	require.NoError(t, err)
	assert.Equal(t, "redis", config.Store.Type)
	assert.Equal(t, "memory", config.Cluster.Type)
	assert.Equal(t, 10, config.Cluster.Count)
	assert.Equal(t, policy.FifoPolicyName, config.Policy.Name)
	assert.Equal(t, "500ms", config.Scheduler.SchedulingTimeout)
	assert.Equal(t, "info", config.LogLevel)

	config, err = GetConfig("local.memory")
	require.NoError(t, err)
	assert.Equal(t, policy.FairSharePolicyName, config.Policy.Name)
	assert.Equal(t, "memory", config.Store.Type)
	// a present Scheduler section is not merged field by field
	assert.Equal(t, "", config.Scheduler.LaunchTimeout)
}

func TestJSONTextAndFileSelectors(t *testing.T) {
	config, err := GetConfig(`{"LogLevel": "debug", "Cluster": {"Type": "memory", "Count": 2}}`)
	require.NoError(t, err)
	level, err := config.Level()
	require.NoError(t, err)
	assert.Equal(t, log.DebugLevel, level)
	nodes, err := config.Cluster.CreateNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, 2)

	path := filepath.Join(t.TempDir(), "herd.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`{"Store": {"Type": "memory"}, "LogLevel": "warn"}`), 0644))
	config, err = GetConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "warn", config.LogLevel)

	_, err = GetConfig(`{"Store": `)
	assert.Error(t, err)
}

func TestCreateSchedulerConfig(t *testing.T) {
	sc := SchedulerJSONConfig{
		SchedulingTimeout: "50ms",
		AutoRemoveDelay:   "0s",
		RemovedJobDelay:   "2m",
		LaunchWorkers:     4,
	}
	c, err := sc.CreateSchedulerConfig()
	require.NoError(t, err)
	assert.Equal(t, 50*time.Millisecond, c.SchedulingTimeout)
	assert.Equal(t, time.Duration(0), c.AutoRemoveDelay)
	assert.Equal(t, server.DefaultAutoRemoveErrorDelay, c.AutoRemoveErrorDelay)
	assert.Equal(t, 2*time.Minute, c.RemovedJobDelay)
	assert.Equal(t, 4, c.LaunchWorkers)
	assert.Equal(t, server.DefaultClientWorkers, c.ClientWorkers)
	assert.Equal(t, server.DefaultLaunchTimeout, c.LaunchTimeout)

	sc = SchedulerJSONConfig{LaunchTimeout: "soon"}
	_, err = sc.CreateSchedulerConfig()
	assert.Error(t, err)

	sc = SchedulerJSONConfig{RMReconnectDelay: "-1s"}
	_, err = sc.CreateSchedulerConfig()
	assert.Error(t, err)
}

func TestCreateStore(t *testing.T) {
	s, err := (&StoreJSONConfig{Type: "memory"}).Create()
	require.NoError(t, err)
	assert.IsType(t, &storemem.Store{}, s)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	s, err = (&StoreJSONConfig{Type: "redis", Addr: mr.Addr()}).Create()
	require.NoError(t, err)
	assert.IsType(t, &storeredis.Store{}, s)

	_, err = (&StoreJSONConfig{Type: "redis"}).Create()
	assert.Error(t, err)
	_, err = (&StoreJSONConfig{Type: "etcd"}).Create()
	assert.Error(t, err)
}

func TestCreateNodes(t *testing.T) {
	c := ClusterJSONConfig{Type: "memory"}
	nodes, err := c.CreateNodes()
	require.NoError(t, err)
	assert.Len(t, nodes, DefaultMemoryNodes)

	c.Nodes = []NodeJSONConfig{{Id: "a", Labels: map[string]string{"os": "linux"}}, {Id: "b"}}
	nodes, err = c.CreateNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	assert.Equal(t, "a", string(nodes[0].Id()))

	c.Nodes = append(c.Nodes, NodeJSONConfig{Id: "a"})
	_, err = c.CreateNodes()
	assert.Error(t, err)

	_, err = (&ClusterJSONConfig{Type: "kubernetes"}).CreateNodes()
	assert.Error(t, err)
}

func TestFileCluster(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nodes.json")
	require.NoError(t, ioutil.WriteFile(path, []byte(`[{"Id": "a"}]`), 0644))
	c := ClusterJSONConfig{Type: "file", Path: path, Refresh: "5ms"}
	nodes, err := c.CreateNodes()
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	updates := make(chan []cluster.NodeUpdate, 10)
	members, err := c.WatchMembers(nodes, func(u []cluster.NodeUpdate) { updates <- u })
	require.NoError(t, err)
	require.NotNil(t, members)
	defer members.Close()

	require.NoError(t, ioutil.WriteFile(path, []byte(`[{"Id": "a"}, {"Id": "b"}]`), 0644))
	select {
	case u := <-updates:
		require.Len(t, u, 1)
		assert.Equal(t, cluster.NodeAdded, u[0].UpdateType)
		assert.Equal(t, cluster.NodeId("b"), u[0].Id)
	case <-time.After(5 * time.Second):
		t.Fatal("membership change was not applied")
	}

	_, err = (&ClusterJSONConfig{Type: "file", Path: path, Refresh: "-1s"}).WatchMembers(nodes, nil)
	assert.Error(t, err)
	members, err = (&ClusterJSONConfig{Type: "memory"}).WatchMembers(nodes, nil)
	assert.NoError(t, err)
	assert.Nil(t, members)
}

func TestPolicyConfigs(t *testing.T) {
	p := PolicyJSONConfig{Name: policy.FifoPolicyName, BatchSize: 5}
	configs := p.CreateConfigs()
	assert.IsType(t, policy.StaticConfigs{}, configs)
	assert.Equal(t, 5, configs.Config().BatchSize)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte("batchSize: 7\n"), 0644))
	p.ConfigFile = path
	configs = p.CreateConfigs()
	assert.IsType(t, &policy.ConfigReloader{}, configs)
	assert.Equal(t, 7, configs.Config().BatchSize)
}
