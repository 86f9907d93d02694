// Package local launches tasks as Go functions running in this process.
// Nodes are only names here, but each can be marked down to exercise failure handling.
package local

import (
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/twitter/herd/cloud/cluster"
	"github.com/twitter/herd/scheduler/domain"
	"github.com/twitter/herd/scheduler/launcher"
	"github.com/twitter/herd/scheduler/rm"
)

// Env is what a task function sees of its execution.
type Env struct {
	Task    domain.TaskId
	Nodes   []cluster.NodeId
	Args    []string
	Vars    map[string]string
	Parents []*domain.TaskResult
	Log     io.Writer

	progress func(int)
}

// SetProgress records completion in percent, clamped to [0, 100].
func (e *Env) SetProgress(p int) {
	if p < 0 {
		p = 0
	} else if p > 100 {
		p = 100
	}
	e.progress(p)
}

// Func is a task body. Returning an *ExitError yields a task error with its code,
// returning an error wrapping launcher.ErrNodeDown yields an infrastructure error.
type Func func(ctx context.Context, env *Env) ([]byte, error)

type ExitError struct {
	Code int
	Msg  string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d: %s", e.Code, e.Msg)
}

// Factory creates launchers for the functions registered on it.
type Factory struct {
	mu    sync.Mutex
	funcs map[string]Func
	down  map[cluster.NodeId]bool
	live  map[*Launcher]bool
}

var _ launcher.Factory = (*Factory)(nil)

// NewFactory returns a factory with the builtin commands: echo, sleep, fail, steps.
func NewFactory() *Factory {
	f := &Factory{
		funcs: map[string]Func{},
		down:  map[cluster.NodeId]bool{},
		live:  map[*Launcher]bool{},
	}
	f.Register("echo", echo)
	f.Register("sleep", sleep)
	f.Register("fail", fail)
	f.Register("steps", steps)
	return f
}

func (f *Factory) Register(command string, fn Func) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.funcs[command] = fn
}

// SetDown marks a node dead or alive. Tasks running on a dead node stop answering.
func (f *Factory) SetDown(id cluster.NodeId, down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.down[id] = down
}

// Running returns the number of launched executions that have not ended.
func (f *Factory) Running() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.live)
}

func (f *Factory) anyDown(nodes []cluster.NodeId) (cluster.NodeId, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range nodes {
		if f.down[n] {
			return n, true
		}
	}
	return "", false
}

func (f *Factory) lookup(command string) (Func, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn, ok := f.funcs[command]
	return fn, ok
}

func (f *Factory) track(l *Launcher, live bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if live {
		f.live[l] = true
	} else {
		delete(f.live, l)
	}
}

func (f *Factory) CreateLauncher(ctx context.Context, task *domain.TaskDescriptor, nodes rm.NodeSet) (launcher.Launcher, error) {
	if len(nodes) == 0 {
		return nil, errors.Errorf("no nodes given to launch %s", task.Id)
	}
	return &Launcher{
		factory: f,
		task:    task.Id,
		nodes:   nodes.Ids(),
		logs:    ioutil.Discard,
	}, nil
}

// Launcher runs one task execution.
type Launcher struct {
	factory *Factory
	task    domain.TaskId
	nodes   []cluster.NodeId

	mu         sync.Mutex
	logs       io.Writer
	progress   int
	cancel     context.CancelFunc
	terminated bool
	done       bool
}

var _ launcher.Launcher = (*Launcher)(nil)

func (l *Launcher) DoTask(ctx context.Context, exec domain.Executable, parents []*domain.TaskResult, h launcher.ResultHandler) error {
	if n, down := l.factory.anyDown(l.nodes); down {
		return errors.Wrapf(launcher.ErrNodeDown, "launching %s on %s", l.task, n)
	}
	fn, ok := l.factory.lookup(exec.Command)
	if !ok {
		return errors.Errorf("unknown command %q for %s", exec.Command, l.task)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		cancel()
		return errors.Errorf("%s already launched", l.task)
	}
	l.cancel = cancel
	l.mu.Unlock()

	env := &Env{
		Task:     l.task,
		Nodes:    l.nodes,
		Args:     exec.Args,
		Vars:     exec.Env,
		Parents:  parents,
		Log:      writerFunc(l.write),
		progress: l.setProgress,
	}
	l.factory.track(l, true)
	log.WithFields(log.Fields{"taskId": l.task, "nodes": l.nodes, "command": exec.Command}).Debug("Launching task")
	go l.run(runCtx, fn, env, h)
	return nil
}

func (l *Launcher) run(ctx context.Context, fn Func, env *Env, h launcher.ResultHandler) {
	defer l.factory.track(l, false)
	started := time.Now()
	value, err := fn(ctx, env)

	var res *domain.TaskResult
	switch e := errors.Cause(err).(type) {
	case nil:
		res = domain.NewSuccessResult(l.task, value)
	case *ExitError:
		res = domain.NewTaskErrorResult(l.task, e.Code, err)
	default:
		if launcher.IsNodeDown(err) {
			res = domain.NewInfrastructureErrorResult(l.task, err)
		} else {
			res = domain.NewTaskErrorResult(l.task, 1, err)
		}
	}
	res.Started = started
	res.Output = string(value)

	l.mu.Lock()
	l.done = true
	terminated := l.terminated
	l.mu.Unlock()
	if terminated {
		log.WithFields(log.Fields{"taskId": l.task}).Debug("Dropping result of terminated task")
		return
	}
	// a dead node never answers; the liveness probe has to notice it
	if n, down := l.factory.anyDown(l.nodes); down {
		log.WithFields(log.Fields{"taskId": l.task, "node": n}).Debug("Dropping result from down node")
		return
	}
	h.TaskTerminatedWithResult(l.task, res)
}

func (l *Launcher) Progress(ctx context.Context) (int, error) {
	if n, down := l.factory.anyDown(l.nodes); down {
		return 0, errors.Wrapf(launcher.ErrNodeDown, "probing %s on %s", l.task, n)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.progress, nil
}

func (l *Launcher) Terminate(force bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.terminated {
		return nil
	}
	l.terminated = true
	if l.cancel != nil {
		l.cancel()
	}
	log.WithFields(log.Fields{"taskId": l.task, "force": force, "done": l.done}).Debug("Terminated task")
	return nil
}

func (l *Launcher) ActivateLogs(w io.Writer) error {
	if w == nil {
		return errors.New("nil log writer")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = w
	return nil
}

func (l *Launcher) write(p []byte) (int, error) {
	l.mu.Lock()
	w := l.logs
	l.mu.Unlock()
	return w.Write(p)
}

func (l *Launcher) setProgress(p int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.progress = p
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func echo(ctx context.Context, env *Env) ([]byte, error) {
	out := strings.Join(env.Args, " ")
	fmt.Fprintln(env.Log, out)
	env.SetProgress(100)
	return []byte(out), nil
}

// sleep waits for the duration in Args[0], reporting progress every tenth of it.
func sleep(ctx context.Context, env *Env) ([]byte, error) {
	if len(env.Args) == 0 {
		return nil, &ExitError{Code: 2, Msg: "sleep needs a duration"}
	}
	d, err := time.ParseDuration(env.Args[0])
	if err != nil {
		return nil, &ExitError{Code: 2, Msg: err.Error()}
	}
	step := d / 10
	for i := 1; i <= 10; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(step):
			env.SetProgress(i * 10)
		}
	}
	return nil, nil
}

// fail exits with the code in Args[0], 1 when absent.
func fail(ctx context.Context, env *Env) ([]byte, error) {
	code := 1
	if len(env.Args) > 0 {
		if c, err := strconv.Atoi(env.Args[0]); err == nil {
			code = c
		}
	}
	fmt.Fprintf(env.Log, "failing with %d\n", code)
	return nil, &ExitError{Code: code, Msg: "requested failure"}
}

// steps concatenates the values of the parent results, one per line.
func steps(ctx context.Context, env *Env) ([]byte, error) {
	lines := make([]string, 0, len(env.Parents)+1)
	for _, p := range env.Parents {
		if p != nil {
			lines = append(lines, string(p.Value))
		}
	}
	lines = append(lines, env.Task.Name)
	env.SetProgress(100)
	return []byte(strings.Join(lines, "\n")), nil
}
