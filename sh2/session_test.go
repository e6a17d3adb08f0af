package sh2

import (
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/sh2labs/sh2drv/sh2err"
	"github.com/sh2labs/sh2drv/shtp"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// fakeHAL is an in-memory hal.Interface whose Block/Unblock rendezvous is a
// buffered channel of capacity 1, so a signal delivered before the wait is
// never lost. tx is invoked synchronously from Tx, letting
// tests answer requests (and call Unblock, via opCompleted) before Block is
// ever entered.
type fakeHAL struct {
	maxTransfer int
	onRx        hal.RxCallback

	mu sync.Mutex
	tx func(data []byte)

	unblock chan struct{}
}

func newFakeHAL(maxTransfer int) *fakeHAL {
	return &fakeHAL{maxTransfer: maxTransfer, unblock: make(chan struct{}, 1)}
}

func (f *fakeHAL) setTx(fn func(data []byte)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tx = fn
}

func (f *fakeHAL) Reset(dfuMode bool, onRx hal.RxCallback) error { f.onRx = onRx; return nil }
func (f *fakeHAL) Tx(data []byte) error {
	f.mu.Lock()
	fn := f.tx
	f.mu.Unlock()
	if fn != nil {
		fn(append([]byte(nil), data...))
	}
	return nil
}
func (f *fakeHAL) Rx(buf []byte) error { return nil }
func (f *fakeHAL) Block() error {
	<-f.unblock
	return nil
}
func (f *fakeHAL) Unblock() error {
	select {
	case f.unblock <- struct{}{}:
	default:
	}
	return nil
}
func (f *fakeHAL) MaxTransfer() int { return f.maxTransfer }

// newTestSession wires a Transport + Session over a fakeHAL and completes
// the advertisement round with a fixed TLV stream declaring the sensorhub
// and executable apps on the channel numbers tests expect.
func newTestSession(t *testing.T) (*Session, *fakeHAL, *shtp.Transport) {
	t.Helper()
	link := newFakeHAL(256)
	tr, err := shtp.New(link, logrus.New())
	require.NoError(t, err)
	s := New(tr, link, logrus.New())

	link.setTx(func(data []byte) {
		if len(data) < 6 || data[2] != 0 {
			return
		}
		deliverCargo(link, 0, buildTestAdvertisement())
	})

	require.NoError(t, s.Initialize(nil))
	require.True(t, s.advertDone)
	require.True(t, s.haveChans)

	link.setTx(nil)
	return s, link, tr
}

// buildTestAdvertisement hand-encodes a RESP_ADVERTISE cargo declaring two
// apps and their channels, plus the SH2-level version/report-length TLVs.
func buildTestAdvertisement() []byte {
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
	putTag(6, []byte{1}) // control
	putTag(9, []byte("control"))
	putTag(6, []byte{2})
	putTag(9, []byte("inputNormal"))
	putTag(6, []byte{3})
	putTag(9, []byte("inputWake"))
	putTag(6, []byte{4})
	putTag(9, []byte("gyroRotationVector"))
	putTag(0x80, []byte("1.0"))
	putTag(0x81, []byte{0x01, 10, 0x2A, 12})

	putGUID(2)
	putTag(8, []byte("executable"))
	putTag(6, []byte{5})
	putTag(9, []byte("device"))

	return b
}

// deliverCargo frames payload as a single SHTP transfer and feeds it to the
// transport's registered rx callback, as if the hub had sent it.
func deliverCargo(link *fakeHAL, chanNo uint8, payload []byte) {
	buf := make([]byte, 4+len(payload))
	l := uint16(len(payload) + 4)
	buf[0] = byte(l)
	buf[1] = byte(l >> 8)
	buf[2] = chanNo
	buf[3] = 0
	copy(buf[4:], payload)
	link.onRx(buf, 0)
}

func TestOpInProgressRejectsConcurrentStart(t *testing.T) {
	s, link, _ := newTestSession(t)
	link.setTx(func(data []byte) {}) // never answer; op stays active

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := s.GetProdIds(1)
		done <- err
	}()
	<-started
	time.Sleep(10 * time.Millisecond) // let the goroutine reach opStart's active-set

	_, err := s.GetProdIds(1)
	require.Error(t, err)
	require.Equal(t, sh2err.OpInProgress, sh2err.CodeOf(err))

	link.Unblock()
	<-done
}

func TestGetProdIdsRoundTrip(t *testing.T) {
	s, link, _ := newTestSession(t)
	link.setTx(func(data []byte) {
		require.Equal(t, reportIDProdIDReq, data[4])
		resp := make([]byte, 16)
		resp[0] = byte(reportIDProdIDResp)
		resp[1] = 7
		resp[2] = 3
		resp[3] = 2
		deliverCargo(link, s.controlChan, resp)
	})

	ids, err := s.GetProdIds(1)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	require.EqualValues(t, 7, ids[0].ResetCause)
	require.EqualValues(t, 3, ids[0].SwVerMajor)
}

func TestSensorConfigRoundTrip(t *testing.T) {
	s, link, _ := newTestSession(t)
	want := SensorConfig{
		WakeupEnabled:    true,
		ReportIntervalUS: 10000,
		SensorSpecific:   42,
	}

	var stored SensorConfig
	link.setTx(func(data []byte) {
		switch data[4] {
		case reportIDSetFeatureCmd:
			_, cfg, ok := decodeGetFeatureResp(data[4:])
			require.True(t, ok)
			stored = cfg
		case reportIDGetFeatureReq:
			resp := encodeSetFeatureCmd(SensorID(data[5]), stored)
			resp[0] = byte(reportIDGetFeatureResp)
			deliverCargo(link, s.controlChan, resp)
		}
	})

	require.NoError(t, s.SetSensorConfig(SensorAccelerometer, want))
	got, err := s.GetSensorConfig(SensorAccelerometer)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestFrsWriteThenReadRoundTrip checks that a record written through
// SetFrs reads back byte-for-byte identical through GetFrs.
func TestFrsWriteThenReadRoundTrip(t *testing.T) {
	s, link, _ := newTestSession(t)
	const frsType = FrsType(0x2000)
	var stored []uint32

	// Write responses are delivered from their own goroutine, as a real receive
	// context would: the op answers each one by calling Send again, which
	// must not run while the Send that carried the request still holds the
	// transport's lock.
	link.setTx(func(data []byte) {
		switch data[4] {
		case reportIDFrsWriteReq:
			stored = make([]uint32, binary.LittleEndian.Uint16(data[6:8]))
			go deliverCargo(link, s.controlChan, []byte{byte(reportIDFrsWriteResp), frsStatusWriteReady, 0, 0})
		case reportIDFrsWriteDataReq:
			offset := int(binary.LittleEndian.Uint16(data[6:8]))
			stored[offset] = binary.LittleEndian.Uint32(data[8:12])
			if offset+1 < len(stored) {
				stored[offset+1] = binary.LittleEndian.Uint32(data[12:16])
			}
			status := uint8(frsStatusWriteReady)
			if offset+2 >= len(stored) {
				status = frsStatusWriteCompleted
			}
			go deliverCargo(link, s.controlChan, []byte{byte(reportIDFrsWriteResp), status, 0, 0})
		case reportIDFrsReadReq:
			for i := 0; i < len(stored); i += 2 {
				dataLen := uint8(1)
				if i+1 < len(stored) {
					dataLen = 2
				}
				status := uint8(0) // mid-stream: BUSY-free "not yet complete" placeholder
				if i+int(dataLen) >= len(stored) {
					status = frsStatusReadRecordCompleted
				}
				resp := make([]byte, 16)
				resp[0] = byte(reportIDFrsReadResp)
				resp[1] = (dataLen << 4) | status
				binary.LittleEndian.PutUint16(resp[2:4], uint16(i))
				binary.LittleEndian.PutUint32(resp[4:8], stored[i])
				if dataLen == 2 {
					binary.LittleEndian.PutUint32(resp[8:12], stored[i+1])
				}
				binary.LittleEndian.PutUint16(resp[12:14], uint16(frsType))
				deliverCargo(link, s.controlChan, resp)
			}
		}
	})

	want := []uint32{0x11111111, 0x22222222, 0x33333333}
	require.NoError(t, s.SetFrs(frsType, want))
	got, err := s.GetFrs(frsType)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

// TestCommandSeqMismatchIgnored checks that rx ignores a COMMAND_RESP
// whose commandSeq doesn't match the op's stored sequence.
func TestCommandSeqMismatchIgnored(t *testing.T) {
	s, link, _ := newTestSession(t)
	link.setTx(func(data []byte) {
		seq := data[5]
		wrong := []byte{byte(reportIDCommandResp), 0, cmdGetOscType, seq + 1, 0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		deliverCargo(link, s.controlChan, wrong)
		right := []byte{byte(reportIDCommandResp), 0, cmdGetOscType, seq, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		deliverCargo(link, s.controlChan, right)
	})

	oscType, err := s.GetOscType()
	require.NoError(t, err)
	require.EqualValues(t, 3, oscType)
}

func TestReinitializeErrorSurfacesAsHub(t *testing.T) {
	s, link, _ := newTestSession(t)
	link.setTx(func(data []byte) {
		seq := data[5]
		resp := []byte{byte(reportIDCommandResp), 0, cmdInitialize, seq, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
		deliverCargo(link, s.controlChan, resp)
	})
	err := s.Reinitialize()
	require.Error(t, err)
	require.Equal(t, sh2err.Hub, sh2err.CodeOf(err))
}

func TestForceFlushMatchesSensorID(t *testing.T) {
	s, link, _ := newTestSession(t)
	link.setTx(func(data []byte) {
		deliverCargo(link, s.controlChan, []byte{byte(reportIDFlushCompleted), data[5]})
	})
	require.NoError(t, s.Flush(SensorGameRotationVector))
}
