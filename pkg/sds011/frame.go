package sds011

import "encoding/binary"

// Frame layout constants.
const (
	FrameSize        = 10
	CommandFrameSize = 19

	FrameHeader byte = 0xAA
	FrameTail   byte = 0xAB

	// CmdRawData marks a measurement frame.
	CmdRawData byte = 0xC0
	// CmdReply marks a reply frame sent by the sensor after a command.
	CmdReply byte = 0xC5
	// CmdSendCommand marks a frame sent to the sensor.
	CmdSendCommand byte = 0xB4

	// CommandSleepWork selects sleep/work mode.
	CommandSleepWork byte = 0x06
	// CommandWorkingPeriod sets the working period.
	CommandWorkingPeriod byte = 0x08

	// MaxWorkingPeriod is the longest period in minutes.
	MaxWorkingPeriod uint8 = 30

	// WakeByte is the minimal wake probe.
	WakeByte byte = 0x01
)

const (
	commandSet byte = 0x01
)

var sleepCommand = [CommandFrameSize]byte{
	FrameHeader, CmdSendCommand, CommandSleepWork, commandSet,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0xFF, 0xFF,
	0x05,
	FrameTail,
}

// MeasurementFrame contains the raw fields of a valid measurement frame.
type MeasurementFrame struct {
	PM25Raw  uint16 // in 0.1 µg/m³
	PM10Raw  uint16 // in 0.1 µg/m³
	DeviceID uint16
}

// Measurement converts raw values to whole µg/m³ (truncated).
func (f MeasurementFrame) Measurement() Measurement {
	return Measurement{PM25: f.PM25Raw / 10, PM10: f.PM10Raw / 10}
}

// Reply is a decoded reply frame.
type Reply struct {
	Type     byte
	Data     [3]byte
	DeviceID uint16
}

// Checksum computes the 8-bit additive checksum of b.
func Checksum(b []byte) (sum byte) {
	for _, v := range b {
		sum += v
	}
	return
}

func validFrame(buf []byte, cmd byte) bool {
	return len(buf) == FrameSize &&
		buf[0] == FrameHeader &&
		buf[1] == cmd &&
		buf[FrameSize-1] == FrameTail &&
		Checksum(buf[2:8]) == buf[8]
}

// DecodeFrame validates a measurement frame and extracts raw fields.
// It returns false for anything malformed.
func DecodeFrame(buf []byte) (f MeasurementFrame, ok bool) {
	if !validFrame(buf, CmdRawData) {
		return
	}
	f.PM25Raw = binary.LittleEndian.Uint16(buf[2:4])
	f.PM10Raw = binary.LittleEndian.Uint16(buf[4:6])
	f.DeviceID = binary.LittleEndian.Uint16(buf[6:8])
	return f, true
}

// Decode decodes a measurement frame.
func Decode(buf []byte) (Measurement, bool) {
	f, ok := DecodeFrame(buf)
	if !ok {
		return Measurement{}, false
	}
	return f.Measurement(), true
}

// DecodeReply decodes a reply frame.
func DecodeReply(buf []byte) (r Reply, ok bool) {
	if !validFrame(buf, CmdReply) {
		return
	}
	r.Type = buf[2]
	copy(r.Data[:], buf[3:6])
	r.DeviceID = binary.LittleEndian.Uint16(buf[6:8])
	return r, true
}

// EncodeMeasurement builds a measurement frame, as sent by the sensor.
func EncodeMeasurement(pm25Raw, pm10Raw, deviceID uint16) []byte {
	return encodeFrame(CmdRawData, pm25Raw, pm10Raw, deviceID)
}

// EncodeReply builds a reply frame, as sent by the sensor.
func EncodeReply(r Reply) []byte {
	b := make([]byte, FrameSize)
	b[0], b[1], b[2] = FrameHeader, CmdReply, r.Type
	copy(b[3:6], r.Data[:])
	binary.LittleEndian.PutUint16(b[6:8], r.DeviceID)
	b[8], b[9] = Checksum(b[2:8]), FrameTail
	return b
}

func encodeFrame(cmd byte, v0, v1, deviceID uint16) []byte {
	b := make([]byte, FrameSize)
	b[0], b[1] = FrameHeader, cmd
	binary.LittleEndian.PutUint16(b[2:4], v0)
	binary.LittleEndian.PutUint16(b[4:6], v1)
	binary.LittleEndian.PutUint16(b[6:8], deviceID)
	b[8], b[9] = Checksum(b[2:8]), FrameTail
	return b
}

// EncodeCommand builds a 19-byte command frame. data fills the payload
// starting at index 4, the rest is zero. Extra data is truncated.
func EncodeCommand(command, sub byte, data ...byte) []byte {
	b := make([]byte, CommandFrameSize)
	b[0], b[1], b[2], b[3] = FrameHeader, CmdSendCommand, command, sub
	copy(b[4:15], data)
	b[15], b[16] = 0xFF, 0xFF
	b[17] = Checksum(b[2:17])
	b[18] = FrameTail
	return b
}

// EncodeSetWorkingPeriod builds the set-working-period command.
// 0 is continuous mode, 1-30 is the minutes of sleep between reports.
// Larger values are clamped to 30.
func EncodeSetWorkingPeriod(period uint8) []byte {
	if period > MaxWorkingPeriod {
		period = MaxWorkingPeriod
	}
	return EncodeCommand(CommandWorkingPeriod, commandSet, period)
}

// EncodeSleepCommand returns the fixed sleep command.
func EncodeSleepCommand() []byte {
	b := make([]byte, CommandFrameSize)
	copy(b, sleepCommand[:])
	return b
}

// EncodeWakeByte returns the wake probe.
func EncodeWakeByte() []byte {
	return []byte{WakeByte}
}

// CommandFrame is a decoded command frame, used on the sensor side.
type CommandFrame struct {
	Command byte
	Sub     byte
	Data    [11]byte
}

// DecodeCommand validates a 19-byte command frame.
func DecodeCommand(buf []byte) (f CommandFrame, ok bool) {
	if len(buf) != CommandFrameSize ||
		buf[0] != FrameHeader ||
		buf[1] != CmdSendCommand ||
		buf[CommandFrameSize-1] != FrameTail ||
		Checksum(buf[2:17]) != buf[17] {
		return
	}
	f.Command, f.Sub = buf[2], buf[3]
	copy(f.Data[:], buf[4:15])
	return f, true
}
