package agentapi

import (
	"fmt"

	"github.com/gogo/protobuf/proto"
)

// The types below mirror agentapi.proto. gogo/protobuf marshals them from their struct tags.

type TaskState int32

const (
	TaskState_TASK_STAGING  TaskState = 0
	TaskState_TASK_STARTING TaskState = 1
	TaskState_TASK_RUNNING  TaskState = 2
	TaskState_TASK_FINISHED TaskState = 3
	TaskState_TASK_FAILED   TaskState = 4
	TaskState_TASK_KILLED   TaskState = 5
	TaskState_TASK_LOST     TaskState = 6
	TaskState_TASK_ERROR    TaskState = 7
)

var TaskState_name = map[int32]string{
	0: "TASK_STAGING",
	1: "TASK_STARTING",
	2: "TASK_RUNNING",
	3: "TASK_FINISHED",
	4: "TASK_FAILED",
	5: "TASK_KILLED",
	6: "TASK_LOST",
	7: "TASK_ERROR",
}

var TaskState_value = map[string]int32{
	"TASK_STAGING":  0,
	"TASK_STARTING": 1,
	"TASK_RUNNING":  2,
	"TASK_FINISHED": 3,
	"TASK_FAILED":   4,
	"TASK_KILLED":   5,
	"TASK_LOST":     6,
	"TASK_ERROR":    7,
}

func (x TaskState) String() string {
	if name, ok := TaskState_name[int32(x)]; ok {
		return name
	}
	return fmt.Sprintf("TaskState(%d)", int32(x))
}

type WorkUnit struct {
	Index        uint32 `protobuf:"fixed32,1,opt,name=index,proto3" json:"index,omitempty"`
	Start        uint32 `protobuf:"fixed32,2,opt,name=start,proto3" json:"start,omitempty"`
	End          uint32 `protobuf:"fixed32,3,opt,name=end,proto3" json:"end,omitempty"`
	WindowLength uint32 `protobuf:"fixed32,4,opt,name=window_length,json=windowLength,proto3" json:"windowLength,omitempty"`
	Digits       []byte `protobuf:"bytes,5,opt,name=digits,proto3" json:"digits,omitempty"`
}

func (m *WorkUnit) Reset()         { *m = WorkUnit{} }
func (m *WorkUnit) String() string { return proto.CompactTextString(m) }
func (*WorkUnit) ProtoMessage()    {}

type Result struct {
	Product uint64 `protobuf:"fixed64,1,opt,name=product,proto3" json:"product,omitempty"`
	Digits  string `protobuf:"bytes,2,opt,name=digits,proto3" json:"digits,omitempty"`
}

func (m *Result) Reset()         { *m = Result{} }
func (m *Result) String() string { return proto.CompactTextString(m) }
func (*Result) ProtoMessage()    {}

type Resources struct {
	Cpus   float64 `protobuf:"fixed64,1,opt,name=cpus,proto3" json:"cpus,omitempty"`
	Memory uint64  `protobuf:"fixed64,2,opt,name=memory,proto3" json:"memory,omitempty"`
}

func (m *Resources) Reset()         { *m = Resources{} }
func (m *Resources) String() string { return proto.CompactTextString(m) }
func (*Resources) ProtoMessage()    {}

type RegisterAgent struct {
	AgentId   string     `protobuf:"bytes,1,opt,name=agent_id,json=agentId,proto3" json:"agentId,omitempty"`
	Hostname  string     `protobuf:"bytes,2,opt,name=hostname,proto3" json:"hostname,omitempty"`
	Resources *Resources `protobuf:"bytes,3,opt,name=resources,proto3" json:"resources,omitempty"`
}

func (m *RegisterAgent) Reset()         { *m = RegisterAgent{} }
func (m *RegisterAgent) String() string { return proto.CompactTextString(m) }
func (*RegisterAgent) ProtoMessage()    {}

type AgentRegistered struct {
	AgentId     string `protobuf:"bytes,1,opt,name=agent_id,json=agentId,proto3" json:"agentId,omitempty"`
	FrameworkId string `protobuf:"bytes,2,opt,name=framework_id,json=frameworkId,proto3" json:"frameworkId,omitempty"`
}

func (m *AgentRegistered) Reset()         { *m = AgentRegistered{} }
func (m *AgentRegistered) String() string { return proto.CompactTextString(m) }
func (*AgentRegistered) ProtoMessage()    {}

type LaunchTask struct {
	TaskId    string     `protobuf:"bytes,1,opt,name=task_id,json=taskId,proto3" json:"taskId,omitempty"`
	Name      string     `protobuf:"bytes,2,opt,name=name,proto3" json:"name,omitempty"`
	Resources *Resources `protobuf:"bytes,3,opt,name=resources,proto3" json:"resources,omitempty"`
	Data      []byte     `protobuf:"bytes,4,opt,name=data,proto3" json:"data,omitempty"`
}

func (m *LaunchTask) Reset()         { *m = LaunchTask{} }
func (m *LaunchTask) String() string { return proto.CompactTextString(m) }
func (*LaunchTask) ProtoMessage()    {}

type StatusUpdate struct {
	TaskId  string    `protobuf:"bytes,1,opt,name=task_id,json=taskId,proto3" json:"taskId,omitempty"`
	AgentId string    `protobuf:"bytes,2,opt,name=agent_id,json=agentId,proto3" json:"agentId,omitempty"`
	State   TaskState `protobuf:"varint,3,opt,name=state,proto3" json:"state,omitempty"`
	Reason  string    `protobuf:"bytes,4,opt,name=reason,proto3" json:"reason,omitempty"`
	Source  string    `protobuf:"bytes,5,opt,name=source,proto3" json:"source,omitempty"`
	Message string    `protobuf:"bytes,6,opt,name=message,proto3" json:"message,omitempty"`
	Data    []byte    `protobuf:"bytes,7,opt,name=data,proto3" json:"data,omitempty"`
	Uuid    string    `protobuf:"bytes,8,opt,name=uuid,proto3" json:"uuid,omitempty"`
}

func (m *StatusUpdate) Reset()         { *m = StatusUpdate{} }
func (m *StatusUpdate) String() string { return proto.CompactTextString(m) }
func (*StatusUpdate) ProtoMessage()    {}

type Acknowledge struct {
	TaskId string `protobuf:"bytes,1,opt,name=task_id,json=taskId,proto3" json:"taskId,omitempty"`
	Uuid   string `protobuf:"bytes,2,opt,name=uuid,proto3" json:"uuid,omitempty"`
}

func (m *Acknowledge) Reset()         { *m = Acknowledge{} }
func (m *Acknowledge) String() string { return proto.CompactTextString(m) }
func (*Acknowledge) ProtoMessage()    {}

type Shutdown struct {
	Reason string `protobuf:"bytes,1,opt,name=reason,proto3" json:"reason,omitempty"`
}

func (m *Shutdown) Reset()         { *m = Shutdown{} }
func (m *Shutdown) String() string { return proto.CompactTextString(m) }
func (*Shutdown) ProtoMessage()    {}

type Envelope struct {
	Register    *RegisterAgent   `protobuf:"bytes,1,opt,name=register,proto3" json:"register,omitempty"`
	Registered  *AgentRegistered `protobuf:"bytes,2,opt,name=registered,proto3" json:"registered,omitempty"`
	Launch      *LaunchTask      `protobuf:"bytes,3,opt,name=launch,proto3" json:"launch,omitempty"`
	Status      *StatusUpdate    `protobuf:"bytes,4,opt,name=status,proto3" json:"status,omitempty"`
	Acknowledge *Acknowledge     `protobuf:"bytes,5,opt,name=acknowledge,proto3" json:"acknowledge,omitempty"`
	Shutdown    *Shutdown        `protobuf:"bytes,6,opt,name=shutdown,proto3" json:"shutdown,omitempty"`
}

func (m *Envelope) Reset()         { *m = Envelope{} }
func (m *Envelope) String() string { return proto.CompactTextString(m) }
func (*Envelope) ProtoMessage()    {}

// Kind names the field that is set, for logging.
func (m *Envelope) Kind() string {
	switch {
	case m.Register != nil:
		return "register"
	case m.Registered != nil:
		return "registered"
	case m.Launch != nil:
		return "launch"
	case m.Status != nil:
		return "status"
	case m.Acknowledge != nil:
		return "acknowledge"
	case m.Shutdown != nil:
		return "shutdown"
	default:
		return "empty"
	}
}

func init() {
	proto.RegisterEnum("agentapi.TaskState", TaskState_name, TaskState_value)
	proto.RegisterType((*WorkUnit)(nil), "agentapi.WorkUnit")
	proto.RegisterType((*Result)(nil), "agentapi.Result")
	proto.RegisterType((*Resources)(nil), "agentapi.Resources")
	proto.RegisterType((*RegisterAgent)(nil), "agentapi.RegisterAgent")
	proto.RegisterType((*AgentRegistered)(nil), "agentapi.AgentRegistered")
	proto.RegisterType((*LaunchTask)(nil), "agentapi.LaunchTask")
	proto.RegisterType((*StatusUpdate)(nil), "agentapi.StatusUpdate")
	proto.RegisterType((*Acknowledge)(nil), "agentapi.Acknowledge")
	proto.RegisterType((*Shutdown)(nil), "agentapi.Shutdown")
	proto.RegisterType((*Envelope)(nil), "agentapi.Envelope")
}
