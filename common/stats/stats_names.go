package stats

/*
This file defines all the metrics being collected. As new metrics are added please follow this pattern.
*/

const (
	/************************* Scheduling service metrics **************************/
	/*
		number of jobs accepted by SubmitJob
	*/
	SchedJobsSubmittedCounter = "jobsSubmittedCounter"

	/*
		number of jobs that reached a terminal status, by any path
	*/
	SchedJobsTerminatedCounter = "jobsTerminatedCounter"

	/*
		number of jobs removed from the registry
	*/
	SchedJobsRemovedCounter = "jobsRemovedCounter"

	/*
		number of jobs currently known to the registry
	*/
	SchedLiveJobsGauge = "liveJobsGauge"

	/*
		number of tasks currently running
	*/
	SchedRunningTasksGauge = "runningTasksGauge"

	/*
		number of task restarts scheduled after a task error
	*/
	SchedTaskRestartsCounter = "taskRestartsCounter"

	/*
		number of task restarts scheduled after a node failure
	*/
	SchedNodeFailureRestartsCounter = "nodeFailureRestartsCounter"

	/*
		number of side effects that failed while draining termination data
	*/
	SchedTerminationErrorsCounter = "terminationErrorsCounter"

	/*
		number of scheduling passes that ended in an error
	*/
	SchedPassErrorsCounter = "passErrorsCounter"

	/*
		number of times the resource manager was declared lost
	*/
	SchedRMLostCounter = "rmLostCounter"

	/*
		time spent in one scheduling pass
	*/
	SchedPassLatency_ms = "passLatency_ms"

	/*
		time to handle a client request, from submission to the client pool until completion
	*/
	SchedClientOpLatency_ms = "clientOpLatency_ms"

	/************************* Scheduling method metrics **************************/
	/*
		number of tasks started
	*/
	MethodTasksStartedCounter = "tasksStartedCounter"

	/*
		number of launches that failed or timed out, the task stays eligible
	*/
	MethodLaunchFailuresCounter = "launchFailuresCounter"

	/*
		number of jobs canceled because a selection predicate could not be evaluated
	*/
	MethodSelectionCancelsCounter = "selectionCancelsCounter"

	/*
		number of nodes requested from the resource manager
	*/
	MethodNodesRequestedCounter = "nodesRequestedCounter"

	/*
		time spent launching one task
	*/
	MethodLaunchLatency_ms = "launchLatency_ms"

	/************************* Node pinger metrics **************************/
	/*
		number of progress probes sent
	*/
	PingerProbesCounter = "probesCounter"

	/*
		number of probes that found the node dead
	*/
	PingerNodeDownCounter = "nodeDownCounter"

	/*
		number of probes not sent because the task's previous probe was still running
		or no worker was free
	*/
	PingerSkippedCounter = "probesSkippedCounter"

	/************************* Dispatcher metrics **************************/
	/*
		number of notifications delivered to listeners
	*/
	DispatchDeliveredCounter = "deliveredCounter"

	/*
		number of listeners removed because they failed or timed out
	*/
	DispatchDirtyListenersCounter = "dirtyListenersCounter"

	/*
		number of connected listeners
	*/
	DispatchListenersGauge = "listenersGauge"

	/************************* Resource manager metrics **************************/
	RMNodesAcquiredCounter  = "nodesAcquiredCounter"
	RMNodesFreedCounter     = "nodesFreedCounter"
	RMNodesDownCounter      = "nodesDownCounter"
	RMSelectionErrorCounter = "selectionErrorCounter"
	RMFreeNodesGauge        = "freeNodesGauge"
	RMTotalNodesGauge       = "totalNodesGauge"

	/************************* Store metrics **************************/
	/*
		number of task results loaded back from the store after eviction from memory
	*/
	StoreResultReloadsCounter = "resultReloadsCounter"
)
