package dfu

import (
	"bytes"
	"testing"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/stretchr/testify/require"
)

type fakeFirmware struct {
	meta      map[string]string
	data      []byte
	packetLen int
}

func (f *fakeFirmware) Open() error  { return nil }
func (f *fakeFirmware) Close() error { return nil }
func (f *fakeFirmware) GetMeta(key string) (string, bool) {
	v, ok := f.meta[key]
	return v, ok
}
func (f *fakeFirmware) GetAppLen() int    { return len(f.data) }
func (f *fakeFirmware) GetPacketLen() int { return f.packetLen }
func (f *fakeFirmware) GetAppData(buf []byte, offset, length int) (int, error) {
	n := copy(buf[:length], f.data[offset:offset+length])
	return n, nil
}

func newScenarioFFirmware() *fakeFirmware {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i)
	}
	return &fakeFirmware{
		meta: map[string]string{
			"FW-Format":      "BNO_V1",
			"SW-Part-Number": "1000-3608",
		},
		data:      data,
		packetLen: 64,
	}
}

// fakeLink always acks with ackByte; used to exercise the happy path.
type fakeLink struct {
	resetDFU bool
	sent     [][]byte
}

func (f *fakeLink) Reset(dfuMode bool, onRx hal.RxCallback) error {
	f.resetDFU = dfuMode
	return nil
}
func (f *fakeLink) Tx(data []byte) error {
	f.sent = append(f.sent, append([]byte(nil), data...))
	return nil
}
func (f *fakeLink) Rx(buf []byte) error { buf[0] = ackByte; return nil }
func (f *fakeLink) Block() error        { return nil }
func (f *fakeLink) Unblock() error      { return nil }
func (f *fakeLink) MaxTransfer() int    { return 256 }

func TestFlashScenarioF(t *testing.T) {
	link := &fakeLink{}
	fw := newScenarioFFirmware()

	err := Flash(link, fw, nil)
	require.NoError(t, err)
	require.True(t, link.resetDFU)

	// app length frame, packet length frame, then 16 data frames of 64 bytes.
	require.Len(t, link.sent, 2+16)
	require.Equal(t, []byte{0x00, 0x00, 0x04, 0x00}, link.sent[0][:4])
	require.Equal(t, byte(64), link.sent[1][0])

	var reassembled []byte
	for _, frame := range link.sent[2:] {
		reassembled = append(reassembled, frame[:len(frame)-2]...)
	}
	require.True(t, bytes.Equal(reassembled, fw.data))
}

func TestFlashRejectsUnknownFormat(t *testing.T) {
	link := &fakeLink{}
	fw := newScenarioFFirmware()
	fw.meta["FW-Format"] = "OTHER"
	err := Flash(link, fw, nil)
	require.Error(t, err)
}

func TestFlashRejectsUnknownPartNumber(t *testing.T) {
	link := &fakeLink{}
	fw := newScenarioFFirmware()
	fw.meta["SW-Part-Number"] = "0000-0000"
	err := Flash(link, fw, nil)
	require.Error(t, err)
}

func TestCRC16XModemKnownVector(t *testing.T) {
	// "123456789" with polynomial 0x1021, initial value 0xFFFF, no reflection
	// and no final xor gives 0x29B1 (plain XMODEM, starting from 0, gives 0x31C3).
	got := crc16XModem([]byte("123456789"))
	require.EqualValues(t, 0x29B1, got)
}

// retryLink naks the first badUntil-1 attempts for any frame, then acks.
type retryLink struct {
	badUntil int
	attempt  int
}

func (l *retryLink) Reset(dfuMode bool, onRx hal.RxCallback) error { return nil }
func (l *retryLink) Tx(data []byte) error                          { l.attempt++; return nil }
func (l *retryLink) Rx(buf []byte) error {
	if l.attempt < l.badUntil {
		buf[0] = 0x00
		return nil
	}
	buf[0] = ackByte
	return nil
}
func (l *retryLink) Block() error     { return nil }
func (l *retryLink) Unblock() error   { return nil }
func (l *retryLink) MaxTransfer() int { return 256 }

func TestSendFrameRetriesOnBadAck(t *testing.T) {
	link := &retryLink{badUntil: 3}
	err := sendFrame(link, []byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, link.attempt)
}

func TestSendFrameFailsAfterMaxRetries(t *testing.T) {
	link := &retryLink{badUntil: maxRetries + 10}
	err := sendFrame(link, []byte{1})
	require.Error(t, err)
}
