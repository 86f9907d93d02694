package config

// SchedulerConfigs the map of built-in configurations
var SchedulerConfigs = map[string]string{
	"default":      defaultConfig,
	"local.memory": localMemory,
	"local.redis":  localRedis,
}

// defaultConfig supplies the sections other configurations leave out
const defaultConfig = `{
	"Scheduler": {
		"SchedulingTimeout": "500ms",
		"LaunchTimeout": "30s",
		"NodePingInterval": "10s",
		"NodePingAttempts": 1,
		"ListenerTimeout": "5s",
		"RMReconnectAttempts": 3,
		"RMReconnectDelay": "1s",
		"AutoRemoveDelay": "1h",
		"AutoRemoveErrorDelay": "24h"
	},
	"Policy": {
		"Name": "fifo"
	},
	"Store": {
		"Type": "memory"
	},
	"Cluster": {
		"Type": "memory",
		"Count": 10
	},
	"LogLevel": "info"
}`

// localMemory - !!! make sure this constant is added to SchedulerConfigs map above !!!
const localMemory = `{
	"Scheduler": {
		"SchedulingTimeout": "100ms",
		"NodePingInterval": "1s",
		"NodePingAttempts": 2,
		"AutoRemoveDelay": "10m",
		"AutoRemoveErrorDelay": "1h"
	},
	"Policy": {
		"Name": "fairshare",
		"BatchSize": 20
	},
	"Cluster": {
		"Type": "memory",
		"Nodes": [
			{"Id": "linux1", "Labels": {"os": "linux"}},
			{"Id": "linux2", "Labels": {"os": "linux"}},
			{"Id": "linux3", "Labels": {"os": "linux"}},
			{"Id": "mac1", "Labels": {"os": "mac"}}
		]
	}
}`

// localRedis - !!! make sure this constant is added to SchedulerConfigs map above !!!
const localRedis = `{
	"Store": {
		"Type": "redis",
		"Addr": "localhost:6379",
		"Prefix": "herd:"
	}
}`
