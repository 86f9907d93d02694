package server

import (
	"fmt"
	"time"
)

// Provide defaults for config settings that should never be uninitialized/zero.
const (
	// How long the scheduling thread sleeps after a pass that started nothing.
	DefaultSchedulingTimeout = 500 * time.Millisecond

	// Time allowed for a launcher to accept a task before the attempt is abandoned.
	DefaultLaunchTimeout = 30 * time.Second

	DefaultNodePingInterval = 10 * time.Second
	DefaultNodePingAttempts = 1
	DefaultListenerTimeout  = 5 * time.Second

	DefaultClientWorkers   = 10
	DefaultInternalWorkers = 10
	DefaultLaunchWorkers   = 20
	DefaultPingWorkers     = 10

	DefaultRMReconnectAttempts = 3
	DefaultRMReconnectDelay    = time.Second

	// Zero disables the corresponding automatic removal.
	DefaultAutoRemoveDelay      = time.Hour
	DefaultAutoRemoveErrorDelay = 24 * time.Hour
	DefaultRemovedJobDelay      = 0

	DefaultJobLogLines        = 1000
	DefaultMaxPassesPerSecond = 50
)

// SchedulerConfig tunes the scheduling service. Zero values are replaced by defaults.
type SchedulerConfig struct {
	SchedulingTimeout time.Duration
	LaunchTimeout     time.Duration
	NodePingInterval  time.Duration
	ListenerTimeout   time.Duration

	// Consecutive failed pings tolerated before a node is considered dead.
	NodePingAttempts int

	ClientWorkers   int
	InternalWorkers int
	LaunchWorkers   int
	PingWorkers     int

	RMReconnectAttempts int
	RMReconnectDelay    time.Duration

	AutoRemoveDelay      time.Duration
	AutoRemoveErrorDelay time.Duration
	RemovedJobDelay      time.Duration

	ResultCacheSize    int
	JobLogLines        int
	MaxPassesPerSecond float64
}

func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		SchedulingTimeout:    DefaultSchedulingTimeout,
		LaunchTimeout:        DefaultLaunchTimeout,
		NodePingInterval:     DefaultNodePingInterval,
		ListenerTimeout:      DefaultListenerTimeout,
		NodePingAttempts:     DefaultNodePingAttempts,
		ClientWorkers:        DefaultClientWorkers,
		InternalWorkers:      DefaultInternalWorkers,
		LaunchWorkers:        DefaultLaunchWorkers,
		PingWorkers:          DefaultPingWorkers,
		RMReconnectAttempts:  DefaultRMReconnectAttempts,
		RMReconnectDelay:     DefaultRMReconnectDelay,
		AutoRemoveDelay:      DefaultAutoRemoveDelay,
		AutoRemoveErrorDelay: DefaultAutoRemoveErrorDelay,
		RemovedJobDelay:      DefaultRemovedJobDelay,
		JobLogLines:          DefaultJobLogLines,
		MaxPassesPerSecond:   DefaultMaxPassesPerSecond,
	}
}

// withDefaults fills unset fields. Removal delays are left alone since zero is meaningful there.
func (c SchedulerConfig) withDefaults() SchedulerConfig {
	d := DefaultSchedulerConfig()
	if c.SchedulingTimeout <= 0 {
		c.SchedulingTimeout = d.SchedulingTimeout
	}
	if c.LaunchTimeout <= 0 {
		c.LaunchTimeout = d.LaunchTimeout
	}
	if c.NodePingInterval <= 0 {
		c.NodePingInterval = d.NodePingInterval
	}
	if c.ListenerTimeout <= 0 {
		c.ListenerTimeout = d.ListenerTimeout
	}
	if c.NodePingAttempts <= 0 {
		c.NodePingAttempts = d.NodePingAttempts
	}
	if c.ClientWorkers <= 0 {
		c.ClientWorkers = d.ClientWorkers
	}
	if c.InternalWorkers <= 0 {
		c.InternalWorkers = d.InternalWorkers
	}
	if c.LaunchWorkers <= 0 {
		c.LaunchWorkers = d.LaunchWorkers
	}
	if c.PingWorkers <= 0 {
		c.PingWorkers = d.PingWorkers
	}
	if c.RMReconnectAttempts < 0 {
		c.RMReconnectAttempts = 0
	}
	if c.RMReconnectDelay <= 0 {
		c.RMReconnectDelay = d.RMReconnectDelay
	}
	if c.JobLogLines <= 0 {
		c.JobLogLines = d.JobLogLines
	}
	if c.MaxPassesPerSecond <= 0 {
		c.MaxPassesPerSecond = d.MaxPassesPerSecond
	}
	return c
}

func (c SchedulerConfig) String() string {
	return fmt.Sprintf("SchedulerConfig: SchedulingTimeout: %s, LaunchTimeout: %s, NodePingInterval: %s, NodePingAttempts: %d, "+
		"ListenerTimeout: %s, Workers: client %d internal %d launch %d ping %d, RMReconnect: %d x %s, "+
		"AutoRemove: %s (error %s), RemovedJobDelay: %s, ResultCacheSize: %d, JobLogLines: %d, MaxPassesPerSecond: %.1f",
		c.SchedulingTimeout, c.LaunchTimeout, c.NodePingInterval, c.NodePingAttempts,
		c.ListenerTimeout, c.ClientWorkers, c.InternalWorkers, c.LaunchWorkers, c.PingWorkers,
		c.RMReconnectAttempts, c.RMReconnectDelay, c.AutoRemoveDelay, c.AutoRemoveErrorDelay,
		c.RemovedJobDelay, c.ResultCacheSize, c.JobLogLines, c.MaxPassesPerSecond)
}
