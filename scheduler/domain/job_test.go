package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(name string, parents ...string) *Task {
	return &Task{Id: TaskId{Name: name}, Parents: parents, MaxRetries: 2}
}

func TestValidateFillsDefaults(t *testing.T) {
	j := &Job{JobInfo: JobInfo{Id: 4, Priority: PriorityNormal}, Tasks: []*Task{task("a"), task("b", "a")}}
	j.Tasks[1].MaxRetries = -1
	require.NoError(t, j.Validate())

	a, b := j.Task("a"), j.Task("b")
	assert.Equal(t, NewTaskId(4, "a"), a.Id)
	assert.Equal(t, 1, a.NumNodes)
	assert.Equal(t, 2, a.RetriesLeft)
	assert.NotNil(t, a.Exclusion)
	assert.Equal(t, 0, b.MaxRetries)
	assert.Nil(t, j.Task("c"))
}

func TestValidateRejectsBadGraphs(t *testing.T) {
	tests := map[string][]*Task{
		"no tasks":       nil,
		"unnamed":        {task("")},
		"duplicate":      {task("a"), task("a")},
		"unknown parent": {task("a", "z")},
		"self parent":    {task("a", "a")},
		"cycle":          {task("a", "c"), task("b", "a"), task("c", "b")},
	}
	for name, tasks := range tests {
		j := &Job{JobInfo: JobInfo{Id: 1, Priority: PriorityNormal}, Tasks: tasks}
		assert.Error(t, j.Validate(), name)
	}

	j := &Job{JobInfo: JobInfo{Id: 1, Priority: Priority(9)}, Tasks: []*Task{task("a")}}
	assert.Error(t, j.Validate())
}

func TestJobInfoCounts(t *testing.T) {
	j := &Job{Tasks: []*Task{task("a"), task("b"), task("c"), task("d")}}
	j.Tasks[0].Status = TaskRunning
	j.Tasks[1].Status = TaskFinished
	j.Tasks[2].Status = TaskInError
	j.Tasks[3].Status = TaskWaiting

	info := j.Info()
	assert.Equal(t, 4, info.NumTasks)
	assert.Equal(t, 1, info.NumRunning)
	assert.Equal(t, 1, info.NumFinished)
	assert.Equal(t, 1, info.NumFailed)
	assert.Equal(t, 1, info.NumPending)
	assert.True(t, j.HasErrors())
}

func TestNextWaitingTime(t *testing.T) {
	j := &Job{RestartDelay: time.Second}
	assert.Equal(t, time.Second, j.NextWaitingTime(0))
	assert.Equal(t, 3*time.Second, j.NextWaitingTime(3))
}

func TestCopyIsDeep(t *testing.T) {
	j := &Job{Tasks: []*Task{task("a", "x")}}
	j.Tasks[0].Exclusion = NewNodeExclusion("n1")
	c := j.Copy()
	c.Tasks[0].Parents[0] = "y"
	c.Tasks[0].Exclusion["n2"] = struct{}{}
	assert.Equal(t, "x", j.Tasks[0].Parents[0])
	assert.False(t, j.Tasks[0].Exclusion.Contains("n2"))
}

func TestParseIds(t *testing.T) {
	id, err := ParseTaskId("12tbuild")
	require.NoError(t, err)
	assert.Equal(t, NewTaskId(12, "build"), id)
	assert.Equal(t, "12tbuild", id.String())

	for _, bad := range []string{"", "t", "12t", "tbuild", "xtbuild"} {
		_, err := ParseTaskId(bad)
		assert.Error(t, err, bad)
	}

	p, err := ParsePriority("highest")
	require.NoError(t, err)
	assert.Equal(t, PriorityHighest, p)
	assert.True(t, p.AdminOnly())
	assert.False(t, PriorityNormal.AdminOnly())
}

func TestNodeExclusionKey(t *testing.T) {
	assert.Equal(t, NewNodeExclusion("b", "a").Key(), NewNodeExclusion("a", "b").Key())
	assert.Equal(t, "", NodeExclusion{}.Key())
	assert.NotEqual(t, NewNodeExclusion("a,b").Key(), NewNodeExclusion("a", "b").Key())
}

func TestSelectionHashSeparatesLookalikes(t *testing.T) {
	label := func(args map[string]string) SelectionPredicate {
		return SelectionPredicate{Name: "label", Args: args}
	}
	same := []SelectionPredicates{
		{label(map[string]string{"os": "linux", "arch": "x86"})},
		{label(map[string]string{"arch": "x86", "os": "linux"})},
	}
	assert.Equal(t, same[0].Hash(), same[1].Hash())

	lookalikes := [][2]SelectionPredicates{
		{{label(map[string]string{"os": "linux,arch=x86"})}, {label(map[string]string{"os": "linux", "arch": "x86"})}},
		{{label(map[string]string{"os": "a);label(b=c"})}, {label(map[string]string{"os": "a"}), label(map[string]string{"b": "c"})}},
		{{label(map[string]string{"k": "v;x"})}, {label(map[string]string{"k": "v"}), {Name: "x"}}},
		{{{Name: "a=b"}}, {label(map[string]string{"a": "b"})}},
	}
	for _, l := range lookalikes {
		assert.NotEqual(t, l[0].Hash(), l[1].Hash(), "%v vs %v", l[0], l[1])
	}
	assert.Equal(t, "", SelectionPredicates(nil).Hash())
}

// Terminal statuses are sinks, and every live status can end.
func TestJobStatusTransitionProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	status := gen.IntRange(int(JobPending), int(JobKilled)).Map(func(i int) JobStatus { return JobStatus(i) })

	properties.Property("terminal statuses never change", prop.ForAll(
		func(from, to JobStatus) bool {
			return !from.IsTerminal() || !CanTransition(from, to)
		},
		status, status,
	))

	properties.Property("live statuses can always be killed", prop.ForAll(
		func(from JobStatus) bool {
			return from.IsTerminal() || CanTransition(from, JobKilled)
		},
		status,
	))

	properties.Property("no status transitions to itself", prop.ForAll(
		func(s JobStatus) bool {
			return !CanTransition(s, s)
		},
		status,
	))

	properties.TestingRun(t)
}
