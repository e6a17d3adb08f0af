package sh2

import (
	"encoding/binary"

	"github.com/sh2labs/sh2drv/sh2err"
)

// --- generic building blocks -------------------------------------------------

// cmdFireAndForget sends a COMMAND_REQ and completes as soon as the
// transport confirms transmission, expecting no paired response (spec.md
// §4.2 catalog: clearCounts, syncRvNow, setExtSync, setDcdAutoSave,
// tareNow, persistTare, clearTare, setReorientation, and plain sendCmd).
type cmdFireAndForget struct {
	command uint8
	p       [9]byte
}

func (o *cmdFireAndForget) start(s *Session) error {
	req := commandReq{seq: s.nextCmdSeq(), command: o.command, p: o.p}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *cmdFireAndForget) txDone(s *Session) { s.opCompleted(nil) }

// commandOp sends a COMMAND_REQ and completes on the first COMMAND_RESP
// whose (command, commandSeq) matches, delegating result extraction to
// onMatch (spec.md catalog: reinitialize, saveDcdNow, calConfig,
// getOscType all share this "complete on matching response" shape).
type commandOp struct {
	command uint8
	p       [9]byte
	seq     uint8
	onMatch func(r [11]byte) error
}

func (o *commandOp) start(s *Session) error {
	o.seq = s.nextCmdSeq()
	req := commandReq{seq: o.seq, command: o.command, p: o.p}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *commandOp) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDCommandResp {
		return
	}
	resp, ok := decodeCommandResp(report)
	if !ok || resp.command != o.command || resp.commandSeq != o.seq {
		return
	}
	var err error
	if o.onMatch != nil {
		err = o.onMatch(resp.r)
	}
	s.opCompleted(err)
}

func statusFromR0(r [11]byte) error {
	if r[0] != 0 {
		return sh2err.New(sh2err.Hub)
	}
	return nil
}

// --- getProdIds --------------------------------------------------------------

type opGetProdID struct {
	max int
	ids []ProdIDResp
}

func (o *opGetProdID) start(s *Session) error {
	return s.transport.Send(s.controlChan, prodIDReq{}.encode())
}

func (o *opGetProdID) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDProdIDResp {
		return
	}
	resp, ok := decodeProdIDResp(report)
	if !ok {
		return
	}
	if o.max > 0 && len(o.ids) < o.max {
		o.ids = append(o.ids, resp)
	}
	if o.max == 0 || len(o.ids) >= o.max {
		s.opCompleted(nil)
	}
}

// GetProdIds issues PROD_ID_REQ and collects up to max PROD_ID_RESP
// entries (spec.md catalog "getProdId").
func (s *Session) GetProdIds(max int) ([]ProdIDResp, error) {
	if max > MaxProdIds {
		max = MaxProdIds
	}
	o := &opGetProdID{max: max}
	err := s.opStart(o)
	return o.ids, err
}

// --- sensor config get/set ---------------------------------------------------

type opGetSensorConfig struct {
	sensorID SensorID
	cfg      SensorConfig
}

func (o *opGetSensorConfig) start(s *Session) error {
	return s.transport.Send(s.controlChan, getFeatureReq{featureReportID: uint8(o.sensorID)}.encode())
}

func (o *opGetSensorConfig) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDGetFeatureResp {
		return
	}
	id, cfg, ok := decodeGetFeatureResp(report)
	if !ok || id != o.sensorID {
		return
	}
	o.cfg = cfg
	s.opCompleted(nil)
}

// GetSensorConfig issues GET_FEATURE_REQ and returns the decoded feature
// flags/intervals for sensorID (spec.md catalog "getSensorConfig").
func (s *Session) GetSensorConfig(sensorID SensorID) (SensorConfig, error) {
	o := &opGetSensorConfig{sensorID: sensorID}
	err := s.opStart(o)
	return o.cfg, err
}

type opSetSensorConfig struct {
	sensorID SensorID
	cfg      SensorConfig
}

func (o *opSetSensorConfig) start(s *Session) error {
	return s.transport.Send(s.controlChan, encodeSetFeatureCmd(o.sensorID, o.cfg))
}

func (o *opSetSensorConfig) txDone(s *Session) { s.opCompleted(nil) }

// SetSensorConfig issues SET_FEATURE_CMD for sensorID (spec.md catalog
// "setSensorConfig").
func (s *Session) SetSensorConfig(sensorID SensorID, cfg SensorConfig) error {
	return s.opStart(&opSetSensorConfig{sensorID: sensorID, cfg: cfg})
}

// --- FRS get / getMetadata ----------------------------------------------------

type opGetFrs struct {
	frsType  FrsType
	words    []uint32
	metadata *Metadata
}

func (o *opGetFrs) start(s *Session) error {
	req := frsReadReq{readOffset: 0, frsType: uint16(o.frsType), blockSize: 0}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *opGetFrs) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDFrsReadResp {
		return
	}
	resp, ok := decodeFrsReadResp(report)
	if !ok || resp.frsType != uint16(o.frsType) {
		return
	}

	idx := int(resp.wordOffset)
	need := idx + int(resp.dataLen)
	if need > MaxFrsWords {
		s.opCompleted(sh2err.New(sh2err.Hub))
		return
	}
	if need > len(o.words) {
		grown := make([]uint32, need)
		copy(grown, o.words)
		o.words = grown
	}
	if resp.dataLen >= 1 {
		o.words[idx] = resp.data0
	}
	if resp.dataLen >= 2 {
		o.words[idx+1] = resp.data1
	}

	switch resp.status {
	case frsStatusReadRecordCompleted, frsStatusReadBlockCompleted, frsStatusReadBlockAndRecordDone:
		if o.metadata != nil {
			*o.metadata = decodeMetadata(o.words)
		}
		s.opCompleted(nil)
		return
	case frsStatusReadRecordEmpty:
		// §9 Open Question: the source's second code path (storing more data
		// after this status) is unreachable once opCompleted has run; we
		// return immediately instead of reproducing it.
		o.words = o.words[:0]
		s.opCompleted(nil)
		return
	case frsStatusReadUnrecognizedFRSType, frsStatusReadBusy, frsStatusReadOffsetOutOfRange, frsStatusReadDeviceError:
		s.opCompleted(sh2err.New(sh2err.Hub))
		return
	}
}

// GetFrs reads an FRS record's raw words (spec.md catalog "getFrs").
func (s *Session) GetFrs(frsType FrsType) ([]uint32, error) {
	o := &opGetFrs{frsType: frsType}
	err := s.opStart(o)
	return o.words, err
}

// GetMetadata reads sensorID's metadata record and decodes it per its
// revision (spec.md catalog "getMetadata", §4.2a sensor->record map).
func (s *Session) GetMetadata(sensorID SensorID) (Metadata, error) {
	frsType, ok := MetadataFrsType(sensorID)
	if !ok {
		return Metadata{}, sh2err.New(sh2err.BadParam)
	}
	var md Metadata
	o := &opGetFrs{frsType: frsType, metadata: &md}
	err := s.opStart(o)
	return md, err
}

// --- FRS set ------------------------------------------------------------------

type opSetFrs struct {
	frsType   FrsType
	words     []uint32
	sentWords int
}

func (o *opSetFrs) start(s *Session) error {
	req := frsWriteReq{length: uint16(len(o.words)), frsType: uint16(o.frsType)}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *opSetFrs) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDFrsWriteResp {
		return
	}
	resp, ok := decodeFrsWriteResp(report)
	if !ok {
		return
	}
	switch resp.status {
	case frsStatusWriteReceived, frsStatusWriteReady:
		remaining := len(o.words) - o.sentWords
		if remaining <= 0 {
			return
		}
		d := frsWriteDataReq{offset: uint16(o.sentWords), data0: o.words[o.sentWords]}
		o.sentWords++
		if remaining >= 2 {
			d.data1 = o.words[o.sentWords]
			o.sentWords++
		}
		if err := s.transport.Send(s.controlChan, d.encode()); err != nil {
			s.opCompleted(err)
		}
	case frsStatusWriteCompleted:
		s.opCompleted(nil)
	default:
		s.opCompleted(sh2err.New(sh2err.Hub))
	}
}

// SetFrs writes an FRS record (spec.md catalog "setFrs").
func (s *Session) SetFrs(frsType FrsType, words []uint32) error {
	if len(words) > MaxFrsWords {
		return sh2err.New(sh2err.BadParam)
	}
	return s.opStart(&opSetFrs{frsType: frsType, words: words})
}

// --- getErrors -----------------------------------------------------------------

// ErrorRecord is one decoded hub error-log entry (spec.md catalog
// "getErrors").
type ErrorRecord struct {
	Severity uint8
	Sequence uint8
	Source   uint8
	Error    uint8
	Module   uint8
	Code     uint8
}

type opGetErrors struct {
	severity uint8
	seq      uint8
	max      int
	errs     []ErrorRecord
}

func (o *opGetErrors) start(s *Session) error {
	o.seq = s.nextCmdSeq()
	var p [9]byte
	p[0] = o.severity
	req := commandReq{seq: o.seq, command: cmdErrors, p: p}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *opGetErrors) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDCommandResp {
		return
	}
	resp, ok := decodeCommandResp(report)
	if !ok || resp.command != cmdErrors || resp.commandSeq != o.seq {
		return
	}
	if resp.r[2] == 255 {
		s.opCompleted(nil)
		return
	}
	if len(o.errs) < o.max {
		o.errs = append(o.errs, ErrorRecord{
			Severity: resp.r[0],
			Sequence: resp.r[1],
			Source:   resp.r[2],
			Error:    resp.r[3],
			Module:   resp.r[4],
			Code:     resp.r[5],
		})
	}
}

// GetErrors reads up to max error-log entries at or above severity
// (spec.md catalog "getErrors").
func (s *Session) GetErrors(severity uint8, max int) ([]ErrorRecord, error) {
	if max > MaxErrorRecords {
		max = MaxErrorRecords
	}
	o := &opGetErrors{severity: severity, max: max}
	err := s.opStart(o)
	return o.errs, err
}

// --- getCounts / clearCounts -----------------------------------------------------

// Counts is the event-count pair reported for one sensor (spec.md catalog
// "getCounts").
type Counts struct {
	Offered   uint32
	Accepted  uint32
	On        uint32
	Attempted uint32
}

type opGetCounts struct {
	sensorID SensorID
	seq      uint8
	counts   Counts
}

func (o *opGetCounts) start(s *Session) error {
	o.seq = s.nextCmdSeq()
	var p [9]byte
	p[0] = countsGet
	p[1] = uint8(o.sensorID)
	req := commandReq{seq: o.seq, command: cmdCounts, p: p}
	return s.transport.Send(s.controlChan, req.encode())
}

func (o *opGetCounts) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDCommandResp {
		return
	}
	resp, ok := decodeCommandResp(report)
	if !ok || resp.command != cmdCounts || resp.commandSeq != o.seq {
		return
	}
	switch resp.respSeq {
	case 0:
		o.counts.Offered = binary.LittleEndian.Uint32(resp.r[3:7])
		o.counts.Accepted = binary.LittleEndian.Uint32(resp.r[7:11])
	case 1:
		o.counts.On = binary.LittleEndian.Uint32(resp.r[3:7])
		o.counts.Attempted = binary.LittleEndian.Uint32(resp.r[7:11])
		s.opCompleted(nil)
	}
}

// GetCounts reads the offered/accepted/on/attempted event counters for
// sensorID (spec.md catalog "getCounts"; completes after the respSeq==1
// response).
func (s *Session) GetCounts(sensorID SensorID) (Counts, error) {
	o := &opGetCounts{sensorID: sensorID}
	err := s.opStart(o)
	return o.counts, err
}

// ClearCounts resets sensorID's event counters (spec.md catalog
// "clearCounts").
func (s *Session) ClearCounts(sensorID SensorID) error {
	var p [9]byte
	p[0] = countsClear
	p[1] = uint8(sensorID)
	return s.opStart(&cmdFireAndForget{command: cmdCounts, p: p})
}

// --- remaining fire-and-forget commands ----------------------------------------

// SyncRvNow issues the rotation-vector sync pulse (spec.md catalog
// "syncRvNow").
func (s *Session) SyncRvNow() error {
	var p [9]byte
	p[0] = syncRv
	return s.opStart(&cmdFireAndForget{command: cmdSync, p: p})
}

// SetExtSync arms external-sync mode with the given delay in microseconds
// (spec.md catalog "setExtSync").
func (s *Session) SetExtSync(delayUS uint32) error {
	var p [9]byte
	p[0] = syncExtSet
	binary.LittleEndian.PutUint32(p[1:5], delayUS)
	return s.opStart(&cmdFireAndForget{command: cmdSync, p: p})
}

// SetDcdAutoSave toggles automatic dynamic-calibration-data persistence
// (spec.md catalog "setDcdAutoSave").
func (s *Session) SetDcdAutoSave(enabled bool) error {
	var p [9]byte
	if enabled {
		p[0] = 1
	}
	return s.opStart(&cmdFireAndForget{command: cmdDcdAutoSave, p: p})
}

// SetTareNow tares the orientation using the given axis bitmask and basis
// (spec.md catalog "tareNow").
func (s *Session) SetTareNow(axes uint8, basis uint8) error {
	var p [9]byte
	p[0] = tareNow
	p[1] = axes
	p[2] = basis
	return s.opStart(&cmdFireAndForget{command: cmdTare, p: p})
}

// PersistTare writes the current tare into DCD (spec.md catalog
// "persistTare").
func (s *Session) PersistTare() error {
	var p [9]byte
	p[0] = tarePersist
	return s.opStart(&cmdFireAndForget{command: cmdTare, p: p})
}

// SetReorientation reorients the rotation vector output frame by the given
// unit quaternion, Q14 fixed point, x/y/z/w order (spec.md catalog
// "setReorientation").
func (s *Session) SetReorientation(x, y, z, w int16) error {
	var p [9]byte
	p[0] = tareSetReorientation
	binary.LittleEndian.PutUint16(p[1:3], uint16(x))
	binary.LittleEndian.PutUint16(p[3:5], uint16(y))
	binary.LittleEndian.PutUint16(p[5:7], uint16(z))
	binary.LittleEndian.PutUint16(p[7:9], uint16(w))
	return s.opStart(&cmdFireAndForget{command: cmdTare, p: p})
}

// ClearTare clears the tare by reorienting with the identity quaternion
// (spec.md catalog "clearTare"; original_source/sh2.c's sh2_clearTare calls
// setReorientation(identity) rather than issuing a distinct command).
func (s *Session) ClearTare() error {
	return s.SetReorientation(0, 0, 0, 1<<14)
}

// SendCmd issues a raw COMMAND_REQ and completes on transmission, for
// commands this package doesn't otherwise wrap (spec.md catalog "sendCmd").
func (s *Session) SendCmd(command uint8, p [9]byte) error {
	return s.opStart(&cmdFireAndForget{command: command, p: p})
}

// --- reinitialize / saveDcdNow / calConfig / getOscType -------------------------

// Reinitialize restarts the hub's sensor subsystem (spec.md catalog
// "reinitialize").
func (s *Session) Reinitialize() error {
	var p [9]byte
	p[0] = initSystem
	return s.opStart(&commandOp{command: cmdInitialize, p: p, onMatch: statusFromR0})
}

// SaveDcdNow flushes dynamic calibration data to persistent storage (spec.md
// catalog "saveDcdNow").
func (s *Session) SaveDcdNow() error {
	return s.opStart(&commandOp{command: cmdSaveDCD, onMatch: statusFromR0})
}

// SetCalConfig enables/disables continuous calibration per sensor (spec.md
// catalog "calConfig"). p[4] carries the planar-calibration flag per the
// §4.2b Open Question resolution: this build takes the newer source
// variant, which sets it (p[3] is left reserved/zero, matching the older
// variant's layout for the other three flags).
func (s *Session) SetCalConfig(accel, gyro, mag, planar bool) error {
	var p [9]byte
	p[0] = boolByte(accel)
	p[1] = boolByte(gyro)
	p[2] = boolByte(mag)
	p[4] = boolByte(planar)
	return s.opStart(&commandOp{command: cmdMeCal, p: p, onMatch: statusFromR0})
}

func boolByte(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// GetOscType queries the hub's oscillator type (spec.md catalog
// "getOscType").
func (s *Session) GetOscType() (uint8, error) {
	var oscType uint8
	o := &commandOp{command: cmdGetOscType, onMatch: func(r [11]byte) error {
		oscType = r[0]
		return nil
	}}
	err := s.opStart(o)
	return oscType, err
}

// --- forceFlush ------------------------------------------------------------------

type opForceFlush struct {
	sensorID SensorID
}

func (o *opForceFlush) start(s *Session) error {
	return s.transport.Send(s.controlChan, encodeForceFlushReq(o.sensorID))
}

func (o *opForceFlush) rx(s *Session, report []byte) {
	if len(report) == 0 || report[0] != reportIDFlushCompleted {
		return
	}
	id, ok := decodeFlushCompleted(report)
	if !ok || id != o.sensorID {
		return
	}
	s.opCompleted(nil)
}

// Flush forces sensorID's batch FIFO to deliver pending reports (spec.md
// catalog "forceFlush").
func (s *Session) Flush(sensorID SensorID) error {
	return s.opStart(&opForceFlush{sensorID: sensorID})
}
