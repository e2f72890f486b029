package cluster

import (
	"net"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/armadaproject/largestproduct/internal/common/apperrors"
	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/common/task"
	"github.com/armadaproject/largestproduct/internal/common/util"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

type MasterConfig struct {
	// Address agents connect to, e.g. 0.0.0.0:5050. Port 0 picks a free port.
	ListenAddress string `validate:"required"`
	// How often idle capacity is re-offered.
	OfferInterval time.Duration `validate:"gt=0"`
	// When set, status updates are acknowledged to the agent as soon as they are delivered on Events.
	ImplicitAcknowledgements bool
	// Reported to agents and to the scheduler on registration. Generated if empty.
	FrameworkId string
	// Bound on each write to an agent connection.
	WriteTimeout time.Duration `validate:"gt=0"`
	// Bound on the registration handshake of a new connection.
	HandshakeTimeout time.Duration `validate:"gt=0"`
}

type agentConn struct {
	id        AgentId
	hostname  string
	conn      net.Conn
	writeMu   sync.Mutex
	available resource.ComputeResources
	// Running tasks and the resources they hold.
	tasks map[TaskId]resource.ComputeResources
	// Every task ever launched on this agent.
	assigned map[TaskId]struct{}
	// Outstanding offer for this agent, empty if none.
	offerId OfferId
}

func (a *agentConn) send(env *agentapi.Envelope, timeout time.Duration) error {
	a.writeMu.Lock()
	defer a.writeMu.Unlock()
	if err := a.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return errors.WithStack(err)
	}
	return agentapi.WriteEnvelope(a.conn, env)
}

// Master accepts agent connections over TCP, turns their spare capacity into offers and forwards task launches and
// status updates between agents and a single scheduler. It implements Driver.
type Master struct {
	config      MasterConfig
	frameworkId string
	log         *logrus.Entry

	listener    net.Listener
	events      chan Event
	done        chan struct{}
	taskManager *task.BackgroundTaskManager
	wg          sync.WaitGroup

	mu     sync.Mutex
	status DriverStatus
	agents map[AgentId]*agentConn
	conns  map[net.Conn]struct{}
	offers map[OfferId]Offer
	// Agents withheld from offers by a refuse filter.
	refused *cache.Cache
}

func NewMaster(config MasterConfig) *Master {
	frameworkId := config.FrameworkId
	if frameworkId == "" {
		frameworkId = util.NewULID()
	}
	return &Master{
		config:      config,
		frameworkId: frameworkId,
		log:         logrus.NewEntry(logrus.StandardLogger()),
		events:      make(chan Event, 64),
		done:        make(chan struct{}),
		taskManager: task.NewBackgroundTaskManager("largestproduct_master_"),
		status:      DriverNotStarted,
		agents:      make(map[AgentId]*agentConn),
		conns:       make(map[net.Conn]struct{}),
		offers:      make(map[OfferId]Offer),
		refused:     cache.New(cache.NoExpiration, time.Minute),
	}
}

// Start binds the listen address, emits Registered and begins accepting agents and making offers.
func (m *Master) Start(ctx *runcontext.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != DriverNotStarted {
		return errors.Errorf("master cannot be started in state %s", m.status)
	}
	listener, err := net.Listen("tcp", m.config.ListenAddress)
	if err != nil {
		return errors.Wrapf(err, "error listening on %s", m.config.ListenAddress)
	}
	m.listener = listener
	m.log = ctx.Log.WithField("component", "master")
	m.status = DriverRunning
	m.events <- Registered{FrameworkId: m.frameworkId}

	m.wg.Add(1)
	go m.acceptLoop()
	m.taskManager.Register(m.offerCycle, m.config.OfferInterval, "offer_cycle")
	m.log.Infof("master %s listening on %s", m.frameworkId, listener.Addr())
	return nil
}

// Addr returns the bound address. Valid after Start.
func (m *Master) Addr() net.Addr {
	return m.listener.Addr()
}

func (m *Master) Status() DriverStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *Master) Events() <-chan Event {
	return m.events
}

func (m *Master) LaunchTasks(offerId OfferId, tasks []TaskInfo, filters Filters) error {
	m.mu.Lock()
	offer, agent, err := m.takeOffer(offerId)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	requested := resource.ComputeResources{}
	for _, t := range tasks {
		requested.Add(t.Resources)
	}
	if !offer.Resources.Fits(requested) {
		m.mu.Unlock()
		return errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "tasks",
			Value:   requested.String(),
			Message: "tasks need more than offer " + string(offerId) + " holds (" + offer.Resources.String() + ")",
		})
	}
	for _, t := range tasks {
		agent.tasks[t.Id] = t.Resources.DeepCopy()
		agent.assigned[t.Id] = struct{}{}
	}
	agent.available.Sub(requested)
	m.applyFilters(agent.id, filters)
	m.mu.Unlock()

	var result *multierror.Error
	for _, t := range tasks {
		env := &agentapi.Envelope{Launch: &agentapi.LaunchTask{
			TaskId:    string(t.Id),
			Name:      t.Name,
			Resources: t.Resources.ToProto(),
			Data:      t.Data,
		}}
		if err := agent.send(env, m.config.WriteTimeout); err != nil {
			result = multierror.Append(result, errors.WithMessagef(err, "error launching task %s on agent %s", t.Id, agent.id))
		}
	}
	return result.ErrorOrNil()
}

func (m *Master) DeclineOffer(offerId OfferId, filters Filters) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, agent, err := m.takeOffer(offerId)
	if err != nil {
		return err
	}
	m.applyFilters(agent.id, filters)
	return nil
}

func (m *Master) AcknowledgeStatusUpdate(status TaskStatus) error {
	if m.config.ImplicitAcknowledgements {
		return errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "status",
			Value:   status.Uuid,
			Message: "master is running with implicit acknowledgements",
		})
	}
	m.mu.Lock()
	agent, ok := m.agents[status.AgentId]
	m.mu.Unlock()
	if !ok {
		return errors.WithStack(&apperrors.ErrNotFound{Type: "agent", Value: string(status.AgentId)})
	}
	return agent.send(&agentapi.Envelope{Acknowledge: &agentapi.Acknowledge{
		TaskId: string(status.TaskId),
		Uuid:   status.Uuid,
	}}, m.config.WriteTimeout)
}

func (m *Master) Stop() error {
	return m.shutdown(DriverStopped, "framework stopped")
}

func (m *Master) Abort() error {
	return m.shutdown(DriverAborted, "framework aborted")
}

// shutdown tells every agent to exit, closes all connections and the listener, then closes Events once nothing can
// emit any more.
func (m *Master) shutdown(status DriverStatus, reason string) error {
	m.mu.Lock()
	if m.status != DriverRunning {
		m.mu.Unlock()
		return nil
	}
	m.status = status
	close(m.done)
	agents := maps.Values(m.agents)
	conns := maps.Keys(m.conns)
	m.mu.Unlock()

	var result *multierror.Error
	if err := m.listener.Close(); err != nil {
		result = multierror.Append(result, errors.WithStack(err))
	}
	for _, agent := range agents {
		if err := agent.send(&agentapi.Envelope{Shutdown: &agentapi.Shutdown{Reason: reason}}, m.config.WriteTimeout); err != nil {
			m.log.WithError(err).Warnf("could not send shutdown to agent %s", agent.id)
		}
	}
	for _, conn := range conns {
		if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			result = multierror.Append(result, errors.WithStack(err))
		}
	}
	timedOut := m.taskManager.StopAll(10 * time.Second)
	m.wg.Wait()
	if timedOut {
		m.log.Warn("offer cycle did not stop in time; leaving events open")
	} else {
		close(m.events)
	}
	m.log.Infof("master %s is %s", m.frameworkId, status)
	return result.ErrorOrNil()
}

func (m *Master) acceptLoop() {
	defer m.wg.Done()
	for {
		conn, err := m.listener.Accept()
		if err != nil {
			select {
			case <-m.done:
			default:
				m.log.WithError(err).Error("error accepting agent connection")
				m.emit(ErrorReceived{Message: err.Error()})
			}
			return
		}
		m.mu.Lock()
		if m.status != DriverRunning {
			m.mu.Unlock()
			_ = conn.Close()
			return
		}
		m.conns[conn] = struct{}{}
		m.wg.Add(1)
		m.mu.Unlock()
		go m.serveAgent(conn)
	}
}

func (m *Master) serveAgent(conn net.Conn) {
	defer m.wg.Done()
	defer func() {
		m.mu.Lock()
		delete(m.conns, conn)
		m.mu.Unlock()
		_ = conn.Close()
	}()

	agent, err := m.handshake(conn)
	if err != nil {
		m.log.WithError(err).Warnf("rejected agent connection from %s", conn.RemoteAddr())
		return
	}
	log := m.log.WithField("agentId", agent.id)
	log.Infof("agent registered from %s offering %s", conn.RemoteAddr(), agent.available)

	for {
		env, err := agentapi.ReadEnvelope(conn)
		if err != nil {
			log.WithError(err).Info("agent disconnected")
			m.agentLost(agent)
			return
		}
		switch {
		case env.Status != nil:
			m.handleStatus(agent, env.Status)
		default:
			log.Warnf("ignoring unexpected %s message from agent", env.Kind())
		}
	}
}

func (m *Master) handshake(conn net.Conn) (*agentConn, error) {
	if err := conn.SetReadDeadline(time.Now().Add(m.config.HandshakeTimeout)); err != nil {
		return nil, errors.WithStack(err)
	}
	env, err := agentapi.ReadEnvelope(conn)
	if err != nil {
		return nil, errors.WithMessage(err, "error reading registration")
	}
	if err := conn.SetReadDeadline(time.Time{}); err != nil {
		return nil, errors.WithStack(err)
	}
	if env.Register == nil {
		return nil, errors.Errorf("expected register message but got %s", env.Kind())
	}
	id := AgentId(env.Register.AgentId)
	if id == "" {
		id = AgentId(util.NewULID())
	}
	agent := &agentConn{
		id:        id,
		hostname:  env.Register.Hostname,
		conn:      conn,
		available: resource.FromProto(env.Register.Resources),
		tasks:     make(map[TaskId]resource.ComputeResources),
		assigned:  make(map[TaskId]struct{}),
	}

	m.mu.Lock()
	if _, exists := m.agents[id]; exists {
		m.mu.Unlock()
		return nil, errors.WithStack(&apperrors.ErrInvalidArgument{
			Name:    "agentId",
			Value:   id,
			Message: "an agent with this id is already registered",
		})
	}
	m.agents[id] = agent
	m.mu.Unlock()

	err = agent.send(&agentapi.Envelope{Registered: &agentapi.AgentRegistered{
		AgentId:     string(id),
		FrameworkId: m.frameworkId,
	}}, m.config.WriteTimeout)
	if err != nil {
		m.mu.Lock()
		delete(m.agents, id)
		m.mu.Unlock()
		return nil, err
	}
	return agent, nil
}

func (m *Master) handleStatus(agent *agentConn, update *agentapi.StatusUpdate) {
	status := TaskStatus{
		TaskId:  TaskId(update.TaskId),
		AgentId: agent.id,
		State:   update.State,
		Reason:  update.Reason,
		Source:  update.Source,
		Message: update.Message,
		Data:    update.Data,
		Uuid:    update.Uuid,
	}
	m.mu.Lock()
	if _, ok := agent.assigned[status.TaskId]; !ok {
		m.mu.Unlock()
		m.log.WithField("agentId", agent.id).Warnf("dropping %s status for task %s, which was never launched on this agent", status.State, status.TaskId)
		return
	}
	if IsTerminal(status.State) {
		if used, ok := agent.tasks[status.TaskId]; ok {
			agent.available.Add(used)
			delete(agent.tasks, status.TaskId)
		}
	}
	m.mu.Unlock()
	if !m.emit(StatusUpdate{Status: status}) {
		return
	}
	if m.config.ImplicitAcknowledgements {
		err := agent.send(&agentapi.Envelope{Acknowledge: &agentapi.Acknowledge{
			TaskId: update.TaskId,
			Uuid:   update.Uuid,
		}}, m.config.WriteTimeout)
		if err != nil {
			m.log.WithError(err).Warnf("could not acknowledge status of task %s", status.TaskId)
		}
	}
}

// agentLost reports every task still running on the agent as lost, then withdraws its offer and the agent itself.
func (m *Master) agentLost(agent *agentConn) {
	m.mu.Lock()
	if m.status != DriverRunning || m.agents[agent.id] != agent {
		m.mu.Unlock()
		return
	}
	delete(m.agents, agent.id)
	taskIds := maps.Keys(agent.tasks)
	slices.Sort(taskIds)
	offerId := agent.offerId
	if offerId != "" {
		delete(m.offers, offerId)
	}
	m.mu.Unlock()

	for _, taskId := range taskIds {
		lost := TaskStatus{
			TaskId:  taskId,
			AgentId: agent.id,
			State:   TaskLost,
			Reason:  ReasonAgentDisconnected,
			Source:  SourceMaster,
			Message: "agent " + string(agent.id) + " disconnected",
			Uuid:    util.NewUUID(),
		}
		if !m.emit(StatusUpdate{Status: lost}) {
			return
		}
	}
	if offerId != "" && !m.emit(OfferRescinded{OfferId: offerId}) {
		return
	}
	m.emit(AgentLost{AgentId: agent.id})
}

// offerCycle offers the idle capacity of every agent that has no outstanding offer and is not filtered.
func (m *Master) offerCycle() {
	m.mu.Lock()
	if m.status != DriverRunning {
		m.mu.Unlock()
		return
	}
	agentIds := maps.Keys(m.agents)
	slices.Sort(agentIds)
	var offers []Offer
	for _, id := range agentIds {
		agent := m.agents[id]
		if agent.offerId != "" || agent.available.IsZero() {
			continue
		}
		if _, refused := m.refused.Get(string(id)); refused {
			continue
		}
		offer := Offer{
			Id:        OfferId(util.NewULID()),
			AgentId:   id,
			Hostname:  agent.hostname,
			Resources: agent.available.DeepCopy(),
		}
		agent.offerId = offer.Id
		m.offers[offer.Id] = offer
		offers = append(offers, offer)
	}
	m.mu.Unlock()

	for _, offer := range offers {
		if !m.emit(OfferReceived{Offer: offer}) {
			return
		}
	}
}

// takeOffer removes an outstanding offer. Callers must hold mu.
func (m *Master) takeOffer(offerId OfferId) (Offer, *agentConn, error) {
	offer, ok := m.offers[offerId]
	if !ok {
		return Offer{}, nil, errors.WithStack(&apperrors.ErrNotFound{Type: "offer", Value: string(offerId)})
	}
	delete(m.offers, offerId)
	agent, ok := m.agents[offer.AgentId]
	if !ok {
		return Offer{}, nil, errors.WithStack(&apperrors.ErrNotFound{Type: "agent", Value: string(offer.AgentId)})
	}
	agent.offerId = ""
	return offer, agent, nil
}

// applyFilters withholds the agent from offers for the refuse duration. Callers must hold mu.
func (m *Master) applyFilters(agentId AgentId, filters Filters) {
	if filters.RefuseDuration > 0 {
		m.refused.Set(string(agentId), struct{}{}, filters.RefuseDuration)
	}
}

// emit blocks until the scheduler takes the event or the master shuts down. It reports whether the event was delivered.
func (m *Master) emit(event Event) bool {
	select {
	case m.events <- event:
		return true
	case <-m.done:
		return false
	}
}
