package sh2

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sh2labs/sh2drv/hal"
	"github.com/sh2labs/sh2drv/sh2err"
	"github.com/sh2labs/sh2drv/shtp"
	"github.com/sirupsen/logrus"
	"github.com/google/uuid"
)

// Event is an asynchronous notification delivered independent of whether an
// operation is in flight (spec.md §7, "Asynchronous events").
type Event struct {
	ID      uint8 // EventReset or EventFRSChange
	FrsType FrsType
}

// SensorEvent is one demultiplexed input report (spec.md §4.2, "input-report
// demultiplexer").
type SensorEvent struct {
	ReportID    SensorID
	Payload     []byte
	TimestampUS uint64
}

// op is the closed tagged-variant interface every operation implements
// (spec.md §9 DESIGN NOTES, "Operation descriptors... express as a closed
// tagged variant"). start is required; txDone/rx are picked up via the
// optional txDoner/rxer interfaces below, mirroring the C struct's optional
// function pointers.
type op interface {
	start(s *Session) error
}

type txDoner interface {
	txDone(s *Session)
}

type rxer interface {
	rx(s *Session, report []byte)
}

// Session is one SH2 application instance bound to a single shtp.Transport.
// At most one operation may be active at a time (spec.md §3 invariant).
type Session struct {
	id        uuid.UUID
	transport *shtp.Transport
	hal       hal.Interface
	log       *logrus.Entry

	reportLens *lru.Cache[uint8, uint8]

	controlChan    uint8
	inputNormalChan uint8
	inputWakeChan  uint8
	gyroRVChan     uint8
	deviceChan     uint8
	haveChans      bool

	version          string
	advertDone       bool
	gotInitResp      bool
	calledResetCallback bool
	execBadPayload   uint32

	eventCallback  func(Event)
	sensorCallback func(SensorEvent)

	seqMu      sync.Mutex
	nextSeq    uint8

	opMu     sync.Mutex
	active   op
	opStatus error

	tsNormal timestampState
	tsWake   timestampState
}

// controlReportLens are the fixed-length control-channel reports whose size
// is part of the wire protocol itself, not learned from an advertisement
// (spec.md §4.2's per-struct byte counts).
var controlReportLens = map[uint8]uint8{
	reportIDCommandResp:      16,
	reportIDGetFeatureResp:   17,
	reportIDFrsReadResp:      16,
	reportIDFrsWriteResp:     4,
	reportIDProdIDResp:       16,
	reportIDFlushCompleted:   2,
	reportIDBaseTimestampRef: 5,
	reportIDTimestampRebase:  5,
}

// New creates a Session over an already-constructed Transport and registers
// its channel/advert listeners. Callers must still call Initialize to
// install callbacks and let the first advertisement round complete.
func New(transport *shtp.Transport, link hal.Interface, log *logrus.Logger) *Session {
	if log == nil {
		log = logrus.StandardLogger()
	}
	s := &Session{
		id:        uuid.New(),
		transport: transport,
		hal:       link,
		log:       log.WithField("pkg", "sh2"),
	}
	cache, err := lru.New[uint8, uint8](MaxReportLenEntries)
	if err != nil {
		// Only fails for non-positive size, which MaxReportLenEntries never is.
		panic(err)
	}
	s.reportLens = cache

	transport.ListenAdvert(appNameSensorHub, s.onSensorHubAdvert, nil)
	transport.ListenChan(appNameSensorHub, chanNameControl, s.onControlChannel, nil)
	transport.ListenChan(appNameSensorHub, chanNameInputNormal, s.onInputNormal, nil)
	transport.ListenChan(appNameSensorHub, chanNameInputWake, s.onInputWake, nil)
	transport.ListenChan(appNameSensorHub, chanNameGyroRV, s.onGyroRV, nil)
	transport.ListenChan(appNameExecutable, chanNameDevice, s.onDeviceChannel, nil)

	return s
}

// Initialize installs the client's async-event callback and solicits an
// advertisement round if one hasn't completed yet.
func (s *Session) Initialize(eventCallback func(Event)) error {
	s.eventCallback = eventCallback
	return s.transport.Service()
}

// SetSensorCallback installs the per-event callback for demultiplexed
// sensor input reports.
func (s *Session) SetSensorCallback(cb func(SensorEvent)) {
	s.sensorCallback = cb
}

// InstanceID identifies this Session for logging/correlation, replacing
// the integer unit index a single-instance C driver would use.
func (s *Session) InstanceID() uuid.UUID { return s.id }

func (s *Session) nextCmdSeq() uint8 {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()
	seq := s.nextSeq
	s.nextSeq++
	return seq
}

// opStart is the single entry point every client API method funnels
// through. It rejects with OpInProgress if an operation is already
// active, otherwise runs o.start,
// o.txDone (if present), then blocks until the receive side calls
// opCompleted.
func (s *Session) opStart(o op) error {
	s.opMu.Lock()
	if s.active != nil {
		s.opMu.Unlock()
		return sh2err.New(sh2err.OpInProgress)
	}
	s.active = o
	s.opStatus = nil
	s.opMu.Unlock()

	if err := o.start(s); err != nil {
		s.opMu.Lock()
		s.active = nil
		s.opMu.Unlock()
		return err
	}
	if td, ok := o.(txDoner); ok {
		td.txDone(s)
	}

	if err := s.hal.Block(); err != nil {
		s.opMu.Lock()
		s.active = nil
		s.opMu.Unlock()
		return sh2err.Wrap(sh2err.IO, err)
	}

	s.opMu.Lock()
	s.active = nil
	status := s.opStatus
	s.opMu.Unlock()
	return status
}

// opCompleted is called from the receive context (directly, or via an op's
// rx/txDone method) to record the final status and release the blocked
// caller. The mutex around opStatus doubles as the memory barrier needed
// between the status store and the unblock signal.
func (s *Session) opCompleted(status error) {
	s.opMu.Lock()
	s.opStatus = status
	s.opMu.Unlock()
	if err := s.hal.Unblock(); err != nil {
		s.log.WithError(err).Warn("unblock failed after op completion")
	}
}

func (s *Session) activeOp() op {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.active
}

// reportLenFor resolves a report id to its on-wire byte length: control
// reports have a fixed length; everything else comes from the table
// learned during advertisement. A zero result means "unknown" and
// terminates splitReports.
func (s *Session) reportLenFor(id uint8) int {
	if l, ok := controlReportLens[id]; ok {
		return int(l)
	}
	if l, ok := s.reportLens.Get(id); ok {
		return int(l)
	}
	return 0
}

// splitReports walks a concatenated-reports cargo using reportLenFor,
// stopping at the first unknown id (a zero length is reserved and
// terminates parsing).
func (s *Session) splitReports(payload []byte) [][]byte {
	var out [][]byte
	i := 0
	for i < len(payload) {
		n := s.reportLenFor(payload[i])
		if n == 0 || i+n > len(payload) {
			break
		}
		out = append(out, payload[i:i+n])
		i += n
	}
	return out
}

// onSensorHubAdvert learns the SH2 session's own version and report-length
// table from the "sensorhub" app's advertisement TLVs. A tag-0 terminator
// marks the end of that app's portion and flips advertDone, resolving the
// channel numbers the rest of the session needs.
func (s *Session) onSensorHubAdvert(cookie any, tag uint8, val []byte) {
	switch tag {
	case 0:
		s.resolveChannels()
		s.advertDone = true
	case tagSH2Version:
		s.version = boundedString(val, 16)
	case tagSH2ReportLens:
		for i := 0; i+1 < len(val); i += 2 {
			s.reportLens.Add(val[i], val[i+1])
		}
	}
}

func (s *Session) resolveChannels() {
	if cn, ok := s.transport.ChanNo(appNameSensorHub, chanNameControl); ok {
		s.controlChan = cn
	}
	if cn, ok := s.transport.ChanNo(appNameSensorHub, chanNameInputNormal); ok {
		s.inputNormalChan = cn
	}
	if cn, ok := s.transport.ChanNo(appNameSensorHub, chanNameInputWake); ok {
		s.inputWakeChan = cn
	}
	if cn, ok := s.transport.ChanNo(appNameSensorHub, chanNameGyroRV); ok {
		s.gyroRVChan = cn
	}
	if cn, ok := s.transport.ChanNo(appNameExecutable, chanNameDevice); ok {
		s.deviceChan = cn
	}
	s.haveChans = true
}

func boundedString(b []byte, max int) string {
	if len(b) > max {
		b = b[:max]
	}
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// onControlChannel dispatches one fully reassembled control-channel cargo:
// split it into reports, check each for an unsolicited push pattern, then
// forward it to the active operation's rx method if any.
func (s *Session) onControlChannel(cookie any, payload []byte, timestampUS uint32) {
	for _, r := range s.splitReports(payload) {
		s.handleControlReport(r)
	}
}

func (s *Session) handleControlReport(r []byte) {
	if len(r) == 0 {
		return
	}
	if r[0] == reportIDCommandResp {
		if resp, ok := decodeCommandResp(r); ok {
			s.handleUnsolicitedCommandResp(resp)
		}
	}
	if o, ok := s.activeOp().(rxer); ok {
		o.rx(s, r)
	}
}

// handleUnsolicitedCommandResp recognizes the two async push patterns that
// can arrive on the control channel unprompted: a reset-complete
// notification riding COMMAND_RESP, and an FRS-changed notification.
func (s *Session) handleUnsolicitedCommandResp(resp commandResp) {
	switch {
	case resp.command == cmdInitialize|0x80 && resp.r[1] == initSystem:
		s.gotInitResp = true
		if s.eventCallback != nil {
			s.eventCallback(Event{ID: EventReset})
		}
	case resp.command == cmdFRS|0x80:
		if s.eventCallback != nil {
			frsType := FrsType(uint16(resp.r[1]) | uint16(resp.r[2])<<8)
			s.eventCallback(Event{ID: EventFRSChange, FrsType: frsType})
		}
	}
}

// onDeviceChannel handles the executable app's one-byte reset-complete
// notification.
func (s *Session) onDeviceChannel(cookie any, payload []byte, timestampUS uint32) {
	if len(payload) != 1 || payload[0] != execResetComplete {
		s.execBadPayload++
		return
	}
	s.calledResetCallback = true
	if s.eventCallback != nil {
		s.eventCallback(Event{ID: EventReset})
	}
}

func (s *Session) onInputNormal(cookie any, payload []byte, timestampUS uint32) {
	s.demuxInput(&s.tsNormal, payload, timestampUS)
}

func (s *Session) onInputWake(cookie any, payload []byte, timestampUS uint32) {
	s.demuxInput(&s.tsWake, payload, timestampUS)
}

// demuxInput is the input-report demultiplexer. It tracks a running
// reference delta across the reports in one cargo, updated by
// BASE_TIMESTAMP_REF / TIMESTAMP_REBASE meta-reports, and composes a
// timestamp for every other report before delivering it.
func (s *Session) demuxInput(ts *timestampState, payload []byte, hostTS uint32) {
	var referenceDelta int32
	for _, r := range s.splitReports(payload) {
		if len(r) == 0 {
			continue
		}
		switch r[0] {
		case reportIDBaseTimestampRef:
			if timebase, ok := decodeBaseTimestampRef(r); ok {
				referenceDelta = -int32(timebase)
			}
		case reportIDTimestampRebase:
			if timebase, ok := decodeTimestampRebase(r); ok {
				referenceDelta += timebase
			}
		default:
			if len(r) < 4 {
				continue
			}
			delay := (int32(r[2]&0xFC) << 6) + int32(r[3])
			tsUS := ts.touS(hostTS, referenceDelta, delay)
			if s.sensorCallback != nil {
				s.sensorCallback(SensorEvent{
					ReportID:    SensorID(r[0]),
					Payload:     append([]byte(nil), r...),
					TimestampUS: tsUS,
				})
			}
		}
	}
}

// onGyroRV delivers gyro-integrated rotation vector reports as-is: fixed
// length from the learned table, no timestamp reconstruction (spec.md
// §4.2 "Gyro-RV channel").
func (s *Session) onGyroRV(cookie any, payload []byte, hostTS uint32) {
	for _, r := range s.splitReports(payload) {
		if len(r) == 0 {
			continue
		}
		if s.sensorCallback != nil {
			s.sensorCallback(SensorEvent{
				ReportID:    SensorID(r[0]),
				Payload:     append([]byte(nil), r...),
				TimestampUS: uint64(hostTS),
			})
		}
	}
}

// SH2-level advertisement tags, scoped to the "sensorhub" app's own TLV
// stream (distinct from shtp's transport-level tag space).
const (
	tagSH2Version    = 0x80
	tagSH2ReportLens = 0x81
)
