package server

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/rm"
)

func TestStuckProbeDoesNotDelayOtherTasks(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	m := newMockedService(t, ctrl, SchedulerConfig{LaunchTimeout: time.Second, NodePingInterval: 10 * time.Millisecond})
	m.submit(t, named("stuck"), named("healthy"))

	m.proxy.EXPECT().GetState(gomock.Any()).Return(rm.State{FreeNodes: 2, TotalNodes: 2}, nil)
	m.proxy.EXPECT().GetAtMostNodes(gomock.Any(), 2, gomock.Any(), gomock.Any()).
		Return(rm.NodeSet(cluster.NewIdNodes(2)), nil)
	stuck, healthy := launcher.NewMockLauncher(ctrl), launcher.NewMockLauncher(ctrl)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).Return(stuck, nil)
	m.factory.EXPECT().CreateLauncher(gomock.Any(), gomock.Any(), gomock.Any()).Return(healthy, nil)
	for _, l := range []*launcher.MockLauncher{stuck, healthy} {
		l.EXPECT().ActivateLogs(gomock.Any()).Return(nil)
		l.EXPECT().DoTask(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)
	}
	require.Equal(t, 2, m.pass(t))

	// the stuck node ignores the probe's deadline
	unblock := make(chan struct{})
	var stuckProbes, healthyProbes int32
	stuck.EXPECT().Progress(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
		atomic.AddInt32(&stuckProbes, 1)
		<-unblock
		return 0, nil
	}).AnyTimes()
	healthy.EXPECT().Progress(gomock.Any()).DoAndReturn(func(ctx context.Context) (int, error) {
		atomic.AddInt32(&healthyProbes, 1)
		return 0, nil
	}).AnyTimes()

	p := newPinger(m.s)
	p.start()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&healthyProbes) >= 5 }, 5*time.Second, time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&stuckProbes))

	close(unblock)
	p.stop()
}
