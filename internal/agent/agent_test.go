package agent

import (
	"net"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	k8sResource "k8s.io/apimachinery/pkg/api/resource"

	"github.com/armadaproject/largestproduct/internal/agent/configuration"
	"github.com/armadaproject/largestproduct/internal/cluster"
	"github.com/armadaproject/largestproduct/internal/common/resource"
	"github.com/armadaproject/largestproduct/internal/common/runcontext"
	"github.com/armadaproject/largestproduct/internal/coordinator"
	"github.com/armadaproject/largestproduct/internal/product"
	"github.com/armadaproject/largestproduct/internal/scheduler"
	"github.com/armadaproject/largestproduct/internal/transport"
	"github.com/armadaproject/largestproduct/pkg/agentapi"
)

const testTimeout = 10 * time.Second

func testConfig(agentId string) configuration.AgentConfiguration {
	return configuration.AgentConfiguration{
		LogLevel:    "debug",
		Application: configuration.ApplicationConfiguration{AgentId: agentId, Hostname: "localhost"},
		Resources: configuration.ResourcesConfiguration{
			Cpus:   k8sResource.MustParse("2"),
			Memory: k8sResource.MustParse("1Gi"),
		},
		Connection: configuration.ConnectionConfiguration{
			ConnectAttempts: 5,
			ConnectDelay:    10 * time.Millisecond,
			DialTimeout:     time.Second,
			WriteTimeout:    time.Second,
		},
		StatusResendInterval: 20 * time.Millisecond,
	}
}

func runAgent(ctx *runcontext.Context, a *Agent) <-chan error {
	result := make(chan error, 1)
	go func() { result <- a.Run(ctx) }()
	return result
}

func awaitResult(t *testing.T, result <-chan error) error {
	select {
	case err := <-result:
		return err
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for agent to exit")
		return nil
	}
}

func readEnvelope(t *testing.T, conn net.Conn) *agentapi.Envelope {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(testTimeout)))
	env, err := agentapi.ReadEnvelope(conn)
	require.NoError(t, err)
	return env
}

// acceptRegistration plays the master's side of the handshake.
func acceptRegistration(t *testing.T, listener net.Listener) net.Conn {
	conn, err := listener.Accept()
	require.NoError(t, err)
	register := readEnvelope(t, conn).Register
	require.NotNil(t, register)
	assert.Equal(t, "agent-1", register.AgentId)
	assert.Equal(t, "localhost", register.Hostname)
	assert.Equal(t, float64(2), register.Resources.Cpus)
	assert.Equal(t, uint64(1<<30), register.Resources.Memory)
	require.NoError(t, agentapi.WriteEnvelope(conn, &agentapi.Envelope{Registered: &agentapi.AgentRegistered{
		AgentId:     register.AgentId,
		FrameworkId: "framework-1",
	}}))
	return conn
}

func TestAgent_RunsTaskAndResendsUntilAcknowledged(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	a := New(listener.Addr().String(), testConfig("agent-1"), transport.Execute)
	result := runAgent(runcontext.Background(), a)
	conn := acceptRegistration(t, listener)
	defer conn.Close()

	data, err := transport.EncodeRequest(product.WorkUnit{
		Index:        0,
		Start:        0,
		End:          4,
		WindowLength: 2,
		Digits:       product.Digits{0, 1, 9, 3},
	})
	require.NoError(t, err)
	require.NoError(t, agentapi.WriteEnvelope(conn, &agentapi.Envelope{Launch: &agentapi.LaunchTask{TaskId: "0", Data: data}}))

	running := readEnvelope(t, conn).Status
	require.NotNil(t, running)
	assert.Equal(t, agentapi.TaskState_TASK_RUNNING, running.State)

	finished := readEnvelope(t, conn).Status
	require.NotNil(t, finished)
	assert.Equal(t, agentapi.TaskState_TASK_FINISHED, finished.State)
	assert.Equal(t, "agent-1", finished.AgentId)
	decoded, err := transport.DecodeResult(finished.Data)
	require.NoError(t, err)
	assert.Equal(t, product.Result{Product: 27, Digits: "93"}, decoded)

	resent := readEnvelope(t, conn).Status
	require.NotNil(t, resent)
	assert.Equal(t, finished.Uuid, resent.Uuid)

	require.NoError(t, agentapi.WriteEnvelope(conn, &agentapi.Envelope{Acknowledge: &agentapi.Acknowledge{
		TaskId: "0",
		Uuid:   finished.Uuid,
	}}))
	assert.Eventually(t, func() bool { return a.PendingStatuses() == 0 }, testTimeout, 5*time.Millisecond)

	require.NoError(t, agentapi.WriteEnvelope(conn, &agentapi.Envelope{Shutdown: &agentapi.Shutdown{Reason: "done"}}))
	assert.NoError(t, awaitResult(t, result))
}

func TestAgent_ReportsFailedTask(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	a := New(listener.Addr().String(), testConfig("agent-1"), transport.Execute)
	result := runAgent(runcontext.Background(), a)
	conn := acceptRegistration(t, listener)
	defer conn.Close()

	require.NoError(t, agentapi.WriteEnvelope(conn, &agentapi.Envelope{Launch: &agentapi.LaunchTask{TaskId: "4", Data: []byte{0xff}}}))
	require.Equal(t, agentapi.TaskState_TASK_RUNNING, readEnvelope(t, conn).Status.State)

	failed := readEnvelope(t, conn).Status
	require.NotNil(t, failed)
	assert.Equal(t, agentapi.TaskState_TASK_FAILED, failed.State)
	assert.Equal(t, transport.SourceExecutor, failed.Source)
	assert.Contains(t, failed.Message, "decoding work unit")

	require.NoError(t, conn.Close())
	assert.Error(t, awaitResult(t, result))
}

func TestAgent_ConnectGivesUp(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	address := listener.Addr().String()
	require.NoError(t, listener.Close())

	config := testConfig("agent-1")
	config.Connection.ConnectAttempts = 2
	err = New(address, config, transport.Execute).Run(runcontext.Background())
	assert.Error(t, err)
}

func TestAgent_StopsOnCancel(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := runcontext.WithCancel(runcontext.Background())
	result := runAgent(ctx, New(listener.Addr().String(), testConfig("agent-1"), transport.Execute))
	conn := acceptRegistration(t, listener)
	defer conn.Close()

	cancel()
	assert.NoError(t, awaitResult(t, result))
}

func TestAgent_GeneratesId(t *testing.T) {
	a := New("localhost:0", testConfig(""), transport.Execute)
	assert.NotEmpty(t, a.Id())
}

type nopPublisher struct{}

func (nopPublisher) Publish(*runcontext.Context, string, product.Result) error { return nil }

func runCluster(t *testing.T, implicitAcks bool, execute Executor) (product.Result, error, []error) {
	digits, err := product.ParseDigits("73167176531330624919225119674426574742355349194934")
	require.NoError(t, err)
	coord, err := coordinator.New(digits, coordinator.Config{WindowLength: 4})
	require.NoError(t, err)
	s, err := scheduler.New(coord, scheduler.Config{
		TaskResources:            resource.New(k8sResource.MustParse("1"), k8sResource.MustParse("32Mi")),
		ImplicitAcknowledgements: implicitAcks,
	}, nopPublisher{})
	require.NoError(t, err)

	master := cluster.NewMaster(cluster.MasterConfig{
		ListenAddress:            "127.0.0.1:0",
		OfferInterval:            5 * time.Millisecond,
		ImplicitAcknowledgements: implicitAcks,
		WriteTimeout:             time.Second,
		HandshakeTimeout:         time.Second,
	})
	ctx, cancel := runcontext.WithTimeout(runcontext.Background(), testTimeout)
	defer cancel()
	require.NoError(t, master.Start(ctx))

	agents := []<-chan error{
		runAgent(ctx, New(master.Addr().String(), testConfig("agent-1"), execute)),
		runAgent(ctx, New(master.Addr().String(), testConfig("agent-2"), execute)),
	}
	result, runErr := s.Run(ctx, master)
	var agentErrs []error
	for _, agentResult := range agents {
		agentErrs = append(agentErrs, awaitResult(t, agentResult))
	}
	return result, runErr, agentErrs
}

func TestCluster_FindsLargestProduct(t *testing.T) {
	digits, err := product.ParseDigits("73167176531330624919225119674426574742355349194934")
	require.NoError(t, err)
	expected, err := product.EvaluateAll(digits, 4)
	require.NoError(t, err)

	for name, implicitAcks := range map[string]bool{"implicit acks": true, "explicit acks": false} {
		t.Run(name, func(t *testing.T) {
			result, err, agentErrs := runCluster(t, implicitAcks, transport.Execute)
			require.NoError(t, err)
			assert.Equal(t, expected.Product, result.Product)
			assert.Equal(t, expected.Digits, result.Digits)
			for _, agentErr := range agentErrs {
				assert.NoError(t, agentErr)
			}
		})
	}
}

func TestCluster_FailedTaskAbortsRun(t *testing.T) {
	failing := func([]byte) transport.Outcome {
		return transport.Outcome{State: agentapi.TaskState_TASK_FAILED, Message: "boom"}
	}
	_, err, _ := runCluster(t, true, failing)
	assert.True(t, errors.Is(err, scheduler.ErrAborted))
	assert.Contains(t, err.Error(), "TASK_FAILED")
}
