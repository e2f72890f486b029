// Package agent runs work units handed out by the master: it registers the local capacity, evaluates every launched
// task in its own goroutine and reports statuses until the master acknowledges them.
package agent

import (
	"net"
	"os"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"

	"github.com/armadaproject/largestproduct/internal/agent/configuration"
	"github.com/armadaproject/largestproduct/internal/common/logging"
	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/common/task"
	"github.com/armadaproject/largestproduct/internal/common/util"
	"github.com/armadaproject/largestproduct/internal/transport"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

// Executor turns a task payload into an outcome. transport.Execute is the production executor.
type Executor func(data []byte) transport.Outcome

type Agent struct {
	masterAddress string
	config        configuration.AgentConfiguration
	execute       Executor
	id            string
	hostname      string

	conn    net.Conn
	writeMu sync.Mutex

	mu sync.Mutex
	// Terminal statuses not yet acknowledged, by uuid.
	pending map[string]*agentapi.StatusUpdate
	tasks   sync.WaitGroup
}

func New(masterAddress string, config configuration.AgentConfiguration, execute Executor) *Agent {
	id := config.Application.AgentId
	if id == "" {
		id = util.NewUUID()
	}
	hostname := config.Application.Hostname
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	return &Agent{
		masterAddress: masterAddress,
		config:        config,
		execute:       execute,
		id:            id,
		hostname:      hostname,
		pending:       map[string]*agentapi.StatusUpdate{},
	}
}

func (a *Agent) Id() string {
	return a.id
}

// Run connects to the master and serves launches until the master shuts the agent down or ctx is cancelled, both of
// which return nil. Losing the connection otherwise is an error.
func (a *Agent) Run(ctx *runcontext.Context) error {
	ctx = runcontext.WithLogField(ctx, "agentId", a.id)
	conn, err := a.connect(ctx)
	if err != nil {
		return err
	}
	a.conn = conn
	defer conn.Close()

	if err := a.register(ctx); err != nil {
		return err
	}

	taskManager := task.NewBackgroundTaskManager(metricsPrefix)
	taskManager.Register(func() { a.resendPending(ctx) }, a.config.StatusResendInterval, "status_resend")
	defer taskManager.StopAll(time.Second)

	stop := make(chan struct{})
	defer close(stop)
	envelopes := make(chan *agentapi.Envelope)
	readErr := make(chan error, 1)
	go func() {
		for {
			env, err := agentapi.ReadEnvelope(conn)
			if err != nil {
				readErr <- err
				return
			}
			select {
			case envelopes <- env:
			case <-stop:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			ctx.Log.Info("context cancelled; waiting for running tasks")
			a.tasks.Wait()
			return nil
		case err := <-readErr:
			a.tasks.Wait()
			return errors.WithMessagef(err, "lost connection to master %s", a.masterAddress)
		case env := <-envelopes:
			switch {
			case env.Launch != nil:
				a.tasks.Add(1)
				go a.runTask(ctx, env.Launch)
			case env.Acknowledge != nil:
				a.acknowledge(env.Acknowledge)
			case env.Shutdown != nil:
				ctx.Log.Infof("master requested shutdown: %s", env.Shutdown.Reason)
				a.tasks.Wait()
				return nil
			default:
				ctx.Log.Warnf("ignoring unexpected %s message from master", env.Kind())
			}
		}
	}
}

func (a *Agent) connect(ctx *runcontext.Context) (net.Conn, error) {
	var conn net.Conn
	err := retry.Do(
		func() error {
			c, err := net.DialTimeout("tcp", a.masterAddress, a.config.Connection.DialTimeout)
			if err != nil {
				return errors.WithStack(err)
			}
			conn = c
			return nil
		},
		retry.Attempts(a.config.Connection.ConnectAttempts),
		retry.Delay(a.config.Connection.ConnectDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			ctx.Log.WithError(err).Warnf("connection attempt %d to master %s failed", n+1, a.masterAddress)
		}),
	)
	if err != nil {
		return nil, errors.WithMessagef(err, "could not connect to master %s", a.masterAddress)
	}
	ctx.Log.Infof("connected to master %s", a.masterAddress)
	return conn, nil
}

func (a *Agent) register(ctx *runcontext.Context) error {
	resources := resource.New(a.config.Resources.Cpus, a.config.Resources.Memory)
	err := a.send(&agentapi.Envelope{Register: &agentapi.RegisterAgent{
		AgentId:   a.id,
		Hostname:  a.hostname,
		Resources: resources.ToProto(),
	}})
	if err != nil {
		return errors.WithMessage(err, "error sending registration")
	}
	if err := a.conn.SetReadDeadline(time.Now().Add(a.config.Connection.WriteTimeout)); err != nil {
		return errors.WithStack(err)
	}
	env, err := agentapi.ReadEnvelope(a.conn)
	if err != nil {
		return errors.WithMessage(err, "error waiting for registration")
	}
	if err := a.conn.SetReadDeadline(time.Time{}); err != nil {
		return errors.WithStack(err)
	}
	if env.Registered == nil {
		return errors.Errorf("expected registered message but got %s", env.Kind())
	}
	ctx.Log.Infof("registered with framework %s offering %s", env.Registered.FrameworkId, resources)
	return nil
}

func (a *Agent) runTask(ctx *runcontext.Context, launch *agentapi.LaunchTask) {
	defer a.tasks.Done()
	log := ctx.Log.WithField("taskId", launch.TaskId)

	err := a.send(&agentapi.Envelope{Status: &agentapi.StatusUpdate{
		TaskId:  launch.TaskId,
		AgentId: a.id,
		State:   agentapi.TaskState_TASK_RUNNING,
		Source:  transport.SourceExecutor,
		Uuid:    util.NewUUID(),
	}})
	if err != nil {
		logging.WithStacktrace(log, err).Warn("error sending running status")
	}

	start := time.Now()
	outcome := a.execute(launch.Data)
	taskDuration.Observe(time.Since(start).Seconds())
	tasksExecuted.WithLabelValues(outcome.State.String()).Inc()
	if outcome.Err != nil {
		logging.WithStacktrace(log, outcome.Err).Warnf("task failed: %s", outcome.Message)
	} else {
		log.Infof("task finished in %s", time.Since(start))
	}

	status := &agentapi.StatusUpdate{
		TaskId:  launch.TaskId,
		AgentId: a.id,
		State:   outcome.State,
		Reason:  outcome.Reason,
		Source:  transport.SourceExecutor,
		Message: outcome.Message,
		Data:    outcome.Data,
		Uuid:    util.NewUUID(),
	}
	a.mu.Lock()
	a.pending[status.Uuid] = status
	a.mu.Unlock()
	if err := a.send(&agentapi.Envelope{Status: status}); err != nil {
		logging.WithStacktrace(log, err).Warn("error sending terminal status; will retry")
	}
}

func (a *Agent) acknowledge(ack *agentapi.Acknowledge) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.pending, ack.Uuid)
}

// PendingStatuses returns the number of terminal statuses awaiting acknowledgement.
func (a *Agent) PendingStatuses() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

func (a *Agent) resendPending(ctx *runcontext.Context) {
	a.mu.Lock()
	statuses := make([]*agentapi.StatusUpdate, 0, len(a.pending))
	for _, status := range a.pending {
		statuses = append(statuses, status)
	}
	a.mu.Unlock()

	for _, status := range statuses {
		ctx.Log.WithField("taskId", status.TaskId).Debugf("resending unacknowledged %s status", status.State)
		if err := a.send(&agentapi.Envelope{Status: status}); err != nil {
			logging.WithStacktrace(ctx.Log, err).Warn("error resending status")
			return
		}
		statusesResent.Inc()
	}
}

func (a *Agent) send(env *agentapi.Envelope) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := a.conn.SetWriteDeadline(time.Now().Add(a.config.Connection.WriteTimeout)); err != nil {
		return errors.WithStack(err)
	}
	return agentapi.WriteEnvelope(a.conn, env)
}
