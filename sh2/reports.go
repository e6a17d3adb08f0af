package sh2

import "encoding/binary"

// The structs below mirror original_source/sh2.c's packed wire structs
// byte-for-byte (little-endian), per SPEC_FULL.md §4.2. Each type's
// encode/decode pair is the sole place that knows its on-wire layout.

// prodIDReq is PROD_ID_REQ, 2 bytes.
type prodIDReq struct{}

func (prodIDReq) encode() []byte {
	return []byte{reportIDProdIDReq, 0}
}

// ProdIDResp is PROD_ID_RESP, 16 bytes.
type ProdIDResp struct {
	ResetCause     uint8
	SwVerMajor     uint8
	SwVerMinor     uint8
	SwPartNumber   uint32
	SwBuildNumber  uint32
	SwVerPatch     uint16
}

func decodeProdIDResp(b []byte) (ProdIDResp, bool) {
	if len(b) < 16 {
		return ProdIDResp{}, false
	}
	return ProdIDResp{
		ResetCause:    b[1],
		SwVerMajor:    b[2],
		SwVerMinor:    b[3],
		SwPartNumber:  binary.LittleEndian.Uint32(b[4:8]),
		SwBuildNumber: binary.LittleEndian.Uint32(b[8:12]),
		SwVerPatch:    binary.LittleEndian.Uint16(b[12:14]),
	}, true
}

// getFeatureReq is GET_FEATURE_REQ, 2 bytes.
type getFeatureReq struct {
	featureReportID uint8
}

func (r getFeatureReq) encode() []byte {
	return []byte{reportIDGetFeatureReq, r.featureReportID}
}

// SensorConfig is the decoded form of GET_FEATURE_RESP / the payload of
// SET_FEATURE_CMD, 17 bytes on the wire.
type SensorConfig struct {
	ChangeSensitivityEnabled  bool
	ChangeSensitivityRelative bool
	WakeupEnabled             bool
	AlwaysOnEnabled           bool
	ChangeSensitivity         uint16
	ReportIntervalUS          uint32
	BatchIntervalUS           uint32
	SensorSpecific            uint32
}

const (
	flagChangeSensEnabled  = 0x01
	flagChangeSensRelative = 0x02
	flagWakeup             = 0x04
	flagAlwaysOn           = 0x08
)

func encodeSetFeatureCmd(sensorID SensorID, cfg SensorConfig) []byte {
	b := make([]byte, 17)
	b[0] = reportIDSetFeatureCmd
	b[1] = uint8(sensorID)
	var flags uint8
	if cfg.ChangeSensitivityEnabled {
		flags |= flagChangeSensEnabled
	}
	if cfg.ChangeSensitivityRelative {
		flags |= flagChangeSensRelative
	}
	if cfg.WakeupEnabled {
		flags |= flagWakeup
	}
	if cfg.AlwaysOnEnabled {
		flags |= flagAlwaysOn
	}
	b[2] = flags
	binary.LittleEndian.PutUint16(b[3:5], cfg.ChangeSensitivity)
	binary.LittleEndian.PutUint32(b[5:9], cfg.ReportIntervalUS)
	binary.LittleEndian.PutUint32(b[9:13], cfg.BatchIntervalUS)
	binary.LittleEndian.PutUint32(b[13:17], cfg.SensorSpecific)
	return b
}

func decodeGetFeatureResp(b []byte) (sensorID SensorID, cfg SensorConfig, ok bool) {
	if len(b) < 17 {
		return 0, SensorConfig{}, false
	}
	flags := b[2]
	cfg = SensorConfig{
		ChangeSensitivityEnabled:  flags&flagChangeSensEnabled != 0,
		ChangeSensitivityRelative: flags&flagChangeSensRelative != 0,
		WakeupEnabled:             flags&flagWakeup != 0,
		AlwaysOnEnabled:           flags&flagAlwaysOn != 0,
		ChangeSensitivity:         binary.LittleEndian.Uint16(b[3:5]),
		ReportIntervalUS:          binary.LittleEndian.Uint32(b[5:9]),
		BatchIntervalUS:           binary.LittleEndian.Uint32(b[9:13]),
		SensorSpecific:            binary.LittleEndian.Uint32(b[13:17]),
	}
	return SensorID(b[1]), cfg, true
}

// frsReadReq is FRS_READ_REQ, 8 bytes.
type frsReadReq struct {
	readOffset uint16
	frsType    uint16
	blockSize  uint16
}

func (r frsReadReq) encode() []byte {
	b := make([]byte, 8)
	b[0] = reportIDFrsReadReq
	binary.LittleEndian.PutUint16(b[2:4], r.readOffset)
	binary.LittleEndian.PutUint16(b[4:6], r.frsType)
	binary.LittleEndian.PutUint16(b[6:8], r.blockSize)
	return b
}

// frsReadResp is FRS_READ_RESP, 16 bytes. lenStatus packs datalen (bits
// 4-7, number of valid 32-bit words in this response: 0, 1 or 2) and
// status (bits 0-3) into one byte.
type frsReadResp struct {
	dataLen    uint8
	status     uint8
	wordOffset uint16
	data0      uint32
	data1      uint32
	frsType    uint16
}

func decodeFrsReadResp(b []byte) (frsReadResp, bool) {
	if len(b) < 16 {
		return frsReadResp{}, false
	}
	lenStatus := b[1]
	return frsReadResp{
		dataLen:    lenStatus >> 4,
		status:     lenStatus & 0x0F,
		wordOffset: binary.LittleEndian.Uint16(b[2:4]),
		data0:      binary.LittleEndian.Uint32(b[4:8]),
		data1:      binary.LittleEndian.Uint32(b[8:12]),
		frsType:    binary.LittleEndian.Uint16(b[12:14]),
	}, true
}

// frsWriteReq is FRS_WRITE_REQ, 6 bytes.
type frsWriteReq struct {
	length  uint16
	frsType uint16
}

func (r frsWriteReq) encode() []byte {
	b := make([]byte, 6)
	b[0] = reportIDFrsWriteReq
	binary.LittleEndian.PutUint16(b[2:4], r.length)
	binary.LittleEndian.PutUint16(b[4:6], r.frsType)
	return b
}

// frsWriteDataReq is FRS_WRITE_DATA_REQ, 12 bytes, carrying up to two
// words of a record being streamed up to the hub.
type frsWriteDataReq struct {
	offset uint16
	data0  uint32
	data1  uint32
}

func (r frsWriteDataReq) encode() []byte {
	b := make([]byte, 12)
	b[0] = reportIDFrsWriteDataReq
	binary.LittleEndian.PutUint16(b[2:4], r.offset)
	binary.LittleEndian.PutUint32(b[4:8], r.data0)
	binary.LittleEndian.PutUint32(b[8:12], r.data1)
	return b
}

// frsWriteResp is FRS_WRITE_RESP, 4 bytes.
type frsWriteResp struct {
	status     uint8
	wordOffset uint16
}

func decodeFrsWriteResp(b []byte) (frsWriteResp, bool) {
	if len(b) < 4 {
		return frsWriteResp{}, false
	}
	return frsWriteResp{
		status:     b[1],
		wordOffset: binary.LittleEndian.Uint16(b[2:4]),
	}, true
}

// commandReq is COMMAND_REQ, 12 bytes: reportId, seq, command, p[9].
type commandReq struct {
	seq     uint8
	command uint8
	p       [9]byte
}

func (r commandReq) encode() []byte {
	b := make([]byte, 12)
	b[0] = reportIDCommandReq
	b[1] = r.seq
	b[2] = r.command
	copy(b[3:], r.p[:])
	return b
}

// commandResp is COMMAND_RESP, 16 bytes: reportId, seq, command,
// commandSeq, respSeq, r[11].
type commandResp struct {
	command    uint8
	commandSeq uint8
	respSeq    uint8
	r          [11]byte
}

func decodeCommandResp(b []byte) (commandResp, bool) {
	if len(b) < 16 {
		return commandResp{}, false
	}
	var resp commandResp
	resp.command = b[2]
	resp.commandSeq = b[3]
	resp.respSeq = b[4]
	copy(resp.r[:], b[5:16])
	return resp, true
}

// forceFlushReq/Resp are FORCE_SENSOR_FLUSH_REQ/RESP, 2 bytes each.
func encodeForceFlushReq(sensorID SensorID) []byte {
	return []byte{reportIDForceFlushReq, uint8(sensorID)}
}

func decodeFlushCompleted(b []byte) (SensorID, bool) {
	if len(b) < 2 {
		return 0, false
	}
	return SensorID(b[1]), true
}

// baseTimestampRef/timestampRebase are the two timestamp-meta reports
// carried on the input channels, 5 bytes each.
func decodeBaseTimestampRef(b []byte) (timebase uint32, ok bool) {
	if len(b) < 5 {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b[1:5]), true
}

func decodeTimestampRebase(b []byte) (timebase int32, ok bool) {
	if len(b) < 5 {
		return 0, false
	}
	return int32(binary.LittleEndian.Uint32(b[1:5])), true
}
