// Package simhub implements a minimal in-memory stand-in for a real sensor
// hub: it satisfies hal.Interface and runs just enough of the wire-level
// SHTP/SH2 responder logic to answer the host stack's advertisement round
// and a handful of request/response transactions. It exists purely to
// exercise shtp+sh2 end to end from cmd/sh2ctl and the integration tests;
// it does not model real sensor physics.
package simhub

import (
	"encoding/binary"
	"sync"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/sirupsen/logrus"
)

const (
	hdrLen      = 4
	maxTransfer = 256

	chanCommand     = 0
	chanControl     = 1
	chanInputNormal = 2
	chanInputWake   = 3
	chanGyroRV      = 4
	chanDevice      = 5

	cmdAdvertiseAll = 1

	reportIDCommandResp      = 0xF1
	reportIDCommandReq       = 0xF2
	reportIDFrsReadResp      = 0xF3
	reportIDFrsReadReq       = 0xF4
	reportIDFrsWriteResp     = 0xF5
	reportIDFrsWriteDataReq  = 0xF6
	reportIDFrsWriteReq      = 0xF7
	reportIDProdIDResp       = 0xF8
	reportIDProdIDReq        = 0xF9
	reportIDGetFeatureResp   = 0xFC
	reportIDSetFeatureCmd    = 0xFD
	reportIDGetFeatureReq    = 0xFE
	reportIDForceFlushReq    = 0xF0
	reportIDFlushCompleted   = 0xEF

	cmdErrors     = 1
	cmdCounts     = 2
	cmdInitialize = 4
	cmdGetOscType = 10

	countsGet = 0

	frsStatusReadRecordCompleted = 3
)

// Hub is a simulated sensor hub. It is safe to drive from one goroutine at
// a time, matching the single-producer/single-consumer discipline shtp and
// sh2 themselves assume.
type Hub struct {
	log *logrus.Entry

	mu   sync.Mutex
	onRx hal.RxCallback

	outSeq [8]uint8

	featureCfg map[uint8][]byte // raw 15-byte tail (flags..sensorSpecific) per sensorId
	frsRecords map[uint16][]uint32

	OscType uint8
}

// New builds a Hub pre-populated with a trivial product id and an empty
// FRS/feature store.
func New(log *logrus.Logger) *Hub {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Hub{
		log:        log.WithField("pkg", "simhub"),
		featureCfg: make(map[uint8][]byte),
		frsRecords: make(map[uint16][]uint32),
		OscType:    1,
	}
}

// --- hal.Interface -----------------------------------------------------------

func (h *Hub) Reset(dfuMode bool, onRx hal.RxCallback) error {
	h.mu.Lock()
	h.onRx = onRx
	h.mu.Unlock()
	return nil
}

func (h *Hub) Tx(data []byte) error {
	if len(data) < hdrLen {
		return nil
	}
	chanNo := data[2]
	payload := data[hdrLen:]
	h.handleHostCargo(chanNo, payload)
	return nil
}

func (h *Hub) Rx(buf []byte) error { return nil }
func (h *Hub) Block() error        { return nil }
func (h *Hub) Unblock() error      { return nil }
func (h *Hub) MaxTransfer() int    { return maxTransfer }

// --- request dispatch ---------------------------------------------------------

func (h *Hub) handleHostCargo(chanNo uint8, payload []byte) {
	switch chanNo {
	case chanCommand:
		h.handleCommandChannel(payload)
	case chanControl:
		h.handleControlChannel(payload)
	}
}

func (h *Hub) handleCommandChannel(payload []byte) {
	if len(payload) < 1 {
		return
	}
	if payload[0] == cmdAdvertiseAll {
		h.send(chanCommand, h.buildAdvertisement())
	}
}

func (h *Hub) handleControlChannel(payload []byte) {
	if len(payload) == 0 {
		return
	}
	switch payload[0] {
	case reportIDProdIDReq:
		h.handleProdIDReq()
	case reportIDGetFeatureReq:
		h.handleGetFeatureReq(payload)
	case reportIDSetFeatureCmd:
		h.handleSetFeatureCmd(payload)
	case reportIDFrsReadReq:
		h.handleFrsReadReq(payload)
	case reportIDCommandReq:
		h.handleCommandReq(payload)
	case reportIDForceFlushReq:
		h.handleForceFlush(payload)
	}
}

func (h *Hub) handleProdIDReq() {
	resp := make([]byte, 16)
	resp[0] = reportIDProdIDResp
	resp[1] = 0 // resetCause: power-on
	resp[2] = 3 // swVerMajor
	resp[3] = 1 // swVerMinor
	binary.LittleEndian.PutUint32(resp[4:8], 0x00010203) // swPartNumber
	h.send(chanControl, resp)
}

func (h *Hub) handleGetFeatureReq(payload []byte) {
	if len(payload) < 2 {
		return
	}
	sensorID := payload[1]
	tail, ok := h.featureCfg[sensorID]
	if !ok {
		tail = make([]byte, 15)
	}
	resp := make([]byte, 17)
	resp[0] = reportIDGetFeatureResp
	resp[1] = sensorID
	copy(resp[2:], tail)
	h.send(chanControl, resp)
}

func (h *Hub) handleSetFeatureCmd(payload []byte) {
	if len(payload) < 17 {
		return
	}
	sensorID := payload[1]
	h.featureCfg[sensorID] = append([]byte(nil), payload[2:17]...)
}

func (h *Hub) handleFrsReadReq(payload []byte) {
	if len(payload) < 8 {
		return
	}
	frsType := binary.LittleEndian.Uint16(payload[4:6])
	words := h.frsRecords[frsType]

	if len(words) == 0 {
		resp := make([]byte, 16)
		resp[0] = reportIDFrsReadResp
		resp[1] = 0 // dataLen=0, status=0 (NO_RECORD)
		binary.LittleEndian.PutUint16(resp[12:14], frsType)
		h.send(chanControl, resp)
		return
	}

	for i := 0; i < len(words); i += 2 {
		dataLen := uint8(1)
		if i+1 < len(words) {
			dataLen = 2
		}
		status := uint8(0)
		if i+int(dataLen) >= len(words) {
			status = frsStatusReadRecordCompleted
		}
		resp := make([]byte, 16)
		resp[0] = reportIDFrsReadResp
		resp[1] = (dataLen << 4) | status
		binary.LittleEndian.PutUint16(resp[2:4], uint16(i))
		binary.LittleEndian.PutUint32(resp[4:8], words[i])
		if dataLen == 2 {
			binary.LittleEndian.PutUint32(resp[8:12], words[i+1])
		}
		binary.LittleEndian.PutUint16(resp[12:14], frsType)
		h.send(chanControl, resp)
	}
}

// SetFrsRecord seeds a record the hub will answer FRS_READ_REQ with. Tests
// and cmd/sh2ctl use this to pre-load metadata/config records.
func (h *Hub) SetFrsRecord(frsType uint16, words []uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frsRecords[frsType] = append([]uint32(nil), words...)
}

func (h *Hub) handleCommandReq(payload []byte) {
	if len(payload) < 12 {
		return
	}
	seq := payload[1]
	command := payload[2]
	p := payload[3:12]

	switch command {
	case cmdErrors:
		resp := make([]byte, 16)
		resp[0] = reportIDCommandResp
		resp[2] = cmdErrors
		resp[3] = seq
		resp[7] = 255 // r[2] terminator
		h.send(chanControl, resp)

	case cmdCounts:
		if p[0] != countsGet {
			return
		}
		r0 := make([]byte, 16)
		r0[0] = reportIDCommandResp
		r0[2] = cmdCounts
		r0[3] = seq
		r0[4] = 0 // respSeq
		binary.LittleEndian.PutUint32(r0[8:12], 10) // r[3..6] offered
		binary.LittleEndian.PutUint32(r0[12:16], 9) // r[7..10] accepted
		h.send(chanControl, r0)

		r1 := make([]byte, 16)
		r1[0] = reportIDCommandResp
		r1[2] = cmdCounts
		r1[3] = seq
		r1[4] = 1
		binary.LittleEndian.PutUint32(r1[8:12], 8) // r[3..6] on
		binary.LittleEndian.PutUint32(r1[12:16], 8) // r[7..10] attempted
		h.send(chanControl, r1)

	case cmdGetOscType:
		resp := make([]byte, 16)
		resp[0] = reportIDCommandResp
		resp[2] = cmdGetOscType
		resp[3] = seq
		resp[5] = h.OscType
		h.send(chanControl, resp)

	case cmdInitialize:
		resp := make([]byte, 16)
		resp[0] = reportIDCommandResp
		resp[2] = cmdInitialize
		resp[3] = seq
		resp[5] = 0 // r[0] == 0: ok
		h.send(chanControl, resp)

	default:
		resp := make([]byte, 16)
		resp[0] = reportIDCommandResp
		resp[2] = command
		resp[3] = seq
		resp[5] = 0
		h.send(chanControl, resp)
	}
}

func (h *Hub) handleForceFlush(payload []byte) {
	if len(payload) < 2 {
		return
	}
	h.send(chanControl, []byte{reportIDFlushCompleted, payload[1]})
}

// --- outbound framing ---------------------------------------------------------

// send frames payload as a single SHTP transfer on chanNo and delivers it to
// the host's registered rx callback, as real hardware would over the byte
// link.
func (h *Hub) send(chanNo uint8, payload []byte) {
	h.mu.Lock()
	onRx := h.onRx
	seq := h.outSeq[chanNo]
	h.outSeq[chanNo]++
	h.mu.Unlock()

	if onRx == nil {
		return
	}
	frame := make([]byte, hdrLen+len(payload))
	l := uint16(len(payload) + hdrLen)
	frame[0] = byte(l)
	frame[1] = byte(l >> 8)
	frame[2] = chanNo
	frame[3] = seq
	copy(frame[hdrLen:], payload)
	onRx(frame, 0)
}

// buildAdvertisement encodes a RESP_ADVERTISE TLV stream declaring the
// sensorhub and executable apps on this Hub's fixed channel assignments.
func (h *Hub) buildAdvertisement() []byte {
	var b []byte
	b = append(b, 0) // RESP_ADVERTISE opcode

	putGUID := func(guid uint32) {
		var g [4]byte
		binary.LittleEndian.PutUint32(g[:], guid)
		b = append(b, 1, 4)
		b = append(b, g[:]...)
	}
	putTag := func(tag uint8, val []byte) {
		b = append(b, tag, byte(len(val)))
		b = append(b, val...)
	}

	putGUID(1)
	putTag(8, []byte("sensorhub"))
	putTag(6, []byte{chanControl})
	putTag(9, []byte("control"))
	putTag(6, []byte{chanInputNormal})
	putTag(9, []byte("inputNormal"))
	putTag(6, []byte{chanInputWake})
	putTag(9, []byte("inputWake"))
	putTag(6, []byte{chanGyroRV})
	putTag(9, []byte("gyroRotationVector"))
	putTag(0x80, []byte("1.0"))
	// report-length table: control reports are fixed-size on the host side
	// already; declare the handful of sensor ids cmd/sh2ctl's demo uses.
	putTag(0x81, []byte{0x05, 10, 0x2A, 12})

	putGUID(2)
	putTag(8, []byte("executable"))
	putTag(6, []byte{chanDevice})
	putTag(9, []byte("device"))

	return b
}

// SendResetComplete emits the executable app's one-byte reset-complete
// notification, as real hardware does after coming out of reset.
func (h *Hub) SendResetComplete() {
	h.send(chanDevice, []byte{0x01})
}
