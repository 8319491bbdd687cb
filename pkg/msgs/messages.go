package msgs

import (
	"github.com/golang/protobuf/proto"
)

// CommandOK is the generic reply indicating success for commands.
type CommandOK struct {
}

// NewMessage implements Message.
func (m *CommandOK) NewMessage() Message { return &CommandOK{} }

// TypeID implements Message.
func (m *CommandOK) TypeID() uint32 { return CommandOKTypeID }

// Serializable implements Message.
func (m *CommandOK) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *CommandOK) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandOK) Reset() { *m = CommandOK{} }

// String implements proto.Message.
func (m *CommandOK) String() string { return proto.CompactTextString(m) }

// CommandErr is the generic message representing command error.
type CommandErr struct {
	Message string `protobuf:"bytes,1,opt,name=message,proto3" json:"message,omitempty"`
	Status  string `protobuf:"bytes,2,opt,name=status,proto3" json:"status,omitempty"`
}

// NewCommandErr creates a CommandErr from an error.
func NewCommandErr(err error) *CommandErr {
	return &CommandErr{Message: err.Error()}
}

// NewMessage implements Message.
func (m *CommandErr) NewMessage() Message { return &CommandErr{} }

// TypeID implements Message.
func (m *CommandErr) TypeID() uint32 { return CommandErrTypeID }

// Serializable implements Message.
func (m *CommandErr) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *CommandErr) ProtoMessage() {}

// Reset implements proto.Message.
func (m *CommandErr) Reset() { *m = CommandErr{} }

// String implements proto.Message.
func (m *CommandErr) String() string { return proto.CompactTextString(m) }

// Error implements error.
func (m *CommandErr) Error() string { return m.Message }

// Reading is the event carrying a measurement.
type Reading struct {
	Pm25      uint32 `protobuf:"varint,1,opt,name=pm25,proto3" json:"pm25"`
	Pm10      uint32 `protobuf:"varint,2,opt,name=pm10,proto3" json:"pm10"`
	Sequence  uint32 `protobuf:"varint,3,opt,name=sequence,proto3" json:"sequence"`
	DeviceId  uint32 `protobuf:"varint,4,opt,name=device_id,json=deviceId,proto3" json:"device_id,omitempty"`
	Timestamp int64  `protobuf:"varint,5,opt,name=timestamp,proto3" json:"timestamp"`
}

// NewMessage implements Message.
func (m *Reading) NewMessage() Message { return &Reading{} }

// TypeID implements Message.
func (m *Reading) TypeID() uint32 { return ReadingTypeID }

// Serializable implements Message.
func (m *Reading) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Reading) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Reading) Reset() { *m = Reading{} }

// String implements proto.Message.
func (m *Reading) String() string { return proto.CompactTextString(m) }

// SetWorkingPeriod command.
type SetWorkingPeriod struct {
	Period uint32 `protobuf:"varint,1,opt,name=period,proto3" json:"period"`
}

// NewMessage implements Message.
func (m *SetWorkingPeriod) NewMessage() Message { return &SetWorkingPeriod{} }

// TypeID implements Message.
func (m *SetWorkingPeriod) TypeID() uint32 { return SetWorkingPeriodTypeID }

// Serializable implements Message.
func (m *SetWorkingPeriod) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SetWorkingPeriod) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetWorkingPeriod) Reset() { *m = SetWorkingPeriod{} }

// String implements proto.Message.
func (m *SetWorkingPeriod) String() string { return proto.CompactTextString(m) }

// SetSleepMode command.
type SetSleepMode struct {
}

// NewMessage implements Message.
func (m *SetSleepMode) NewMessage() Message { return &SetSleepMode{} }

// TypeID implements Message.
func (m *SetSleepMode) TypeID() uint32 { return SetSleepModeTypeID }

// Serializable implements Message.
func (m *SetSleepMode) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *SetSleepMode) ProtoMessage() {}

// Reset implements proto.Message.
func (m *SetSleepMode) Reset() { *m = SetSleepMode{} }

// String implements proto.Message.
func (m *SetSleepMode) String() string { return proto.CompactTextString(m) }

// WakeUp command.
type WakeUp struct {
}

// NewMessage implements Message.
func (m *WakeUp) NewMessage() Message { return &WakeUp{} }

// TypeID implements Message.
func (m *WakeUp) TypeID() uint32 { return WakeUpTypeID }

// Serializable implements Message.
func (m *WakeUp) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *WakeUp) ProtoMessage() {}

// Reset implements proto.Message.
func (m *WakeUp) Reset() { *m = WakeUp{} }

// String implements proto.Message.
func (m *WakeUp) String() string { return proto.CompactTextString(m) }

// StatusQuery queries the status.
type StatusQuery struct {
}

// NewMessage implements Message.
func (m *StatusQuery) NewMessage() Message { return &StatusQuery{} }

// TypeID implements Message.
func (m *StatusQuery) TypeID() uint32 { return StatusQueryTypeID }

// Serializable implements Message.
func (m *StatusQuery) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *StatusQuery) ProtoMessage() {}

// Reset implements proto.Message.
func (m *StatusQuery) Reset() { *m = StatusQuery{} }

// String implements proto.Message.
func (m *StatusQuery) String() string { return proto.CompactTextString(m) }

// Status is the response for StatusQuery.
type Status struct {
	Mode         string   `protobuf:"bytes,1,opt,name=mode,proto3" json:"mode"`
	Reading      *Reading `protobuf:"bytes,2,opt,name=reading,proto3" json:"reading,omitempty"`
	Accepted     uint64   `protobuf:"varint,3,opt,name=accepted,proto3" json:"accepted"`
	Dropped      uint64   `protobuf:"varint,4,opt,name=dropped,proto3" json:"dropped"`
	Replies      uint64   `protobuf:"varint,5,opt,name=replies,proto3" json:"replies"`
	SendFailures uint64   `protobuf:"varint,6,opt,name=send_failures,json=sendFailures,proto3" json:"send_failures"`
}

// NewMessage implements Message.
func (m *Status) NewMessage() Message { return &Status{} }

// TypeID implements Message.
func (m *Status) TypeID() uint32 { return StatusTypeID }

// Serializable implements Message.
func (m *Status) Serializable() proto.Message { return m }

// ProtoMessage implements proto.Message.
func (m *Status) ProtoMessage() {}

// Reset implements proto.Message.
func (m *Status) Reset() { *m = Status{} }

// String implements proto.Message.
func (m *Status) String() string { return proto.CompactTextString(m) }

// TypeID Groups
const (
	GroupCommand uint32 = 0x00000000
	GroupSensor  uint32 = 0x00030000
)

// TypeIDs
const (
	CommandOKTypeID        uint32 = GroupCommand | TypeIDMaskReply | 0x0000
	CommandErrTypeID       uint32 = GroupCommand | TypeIDMaskReply | 0x0001
	ReadingTypeID          uint32 = GroupSensor | TypeIDKindEvent | 0x0000
	SetWorkingPeriodTypeID uint32 = GroupSensor | 0x0001
	SetSleepModeTypeID     uint32 = GroupSensor | 0x0002
	WakeUpTypeID           uint32 = GroupSensor | 0x0003
	StatusQueryTypeID      uint32 = GroupSensor | 0x0004
	StatusTypeID           uint32 = StatusQueryTypeID | TypeIDMaskReply
)
