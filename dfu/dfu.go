// Package dfu implements the firmware-download-update transport: a simple
// request/ACK protocol used only immediately after the hub has been reset
// into DFU mode, entirely separate from the SHTP/SH2 stack.
package dfu

import (
	"encoding/binary"
	"fmt"

	"github.com/sh2labs/sh2drv/hal"
	"github.com/sirupsen/logrus"
)

// Firmware is the external blob accessor this package consumes.
type Firmware interface {
	Open() error
	Close() error
	GetMeta(key string) (string, bool)
	GetAppLen() int
	GetPacketLen() int
	GetAppData(buf []byte, offset, length int) (int, error)
}

const (
	ackByte    = 0x73 // 's'
	maxRetries = 5
	defaultPacketLen = 64
	maxPacketLen     = 64
)

var acceptedPartNumbers = map[string]bool{
	"1000-3608": true,
	"1000-3676": true,
}

// Flash validates fw's metadata, resets the hub into DFU mode, and streams
// the firmware image as a length frame, a packet-length frame, and then
// the payload itself, retrying each frame up to maxRetries times on an
// ACK mismatch.
func Flash(link hal.Interface, fw Firmware, log *logrus.Logger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("pkg", "dfu")

	if err := fw.Open(); err != nil {
		return fmt.Errorf("dfu: open firmware: %w", err)
	}
	defer fw.Close()

	if err := validateMeta(fw); err != nil {
		return err
	}

	appLen := fw.GetAppLen()
	if appLen <= 0 {
		return fmt.Errorf("dfu: app length must be positive, got %d", appLen)
	}
	packetLen := fw.GetPacketLen()
	if packetLen < 1 || packetLen > maxPacketLen {
		packetLen = defaultPacketLen
	}

	if err := link.Reset(true, nil); err != nil {
		return fmt.Errorf("dfu: reset into dfu mode: %w", err)
	}

	entry.WithField("appLen", appLen).WithField("packetLen", packetLen).Info("starting firmware download")

	if err := sendFrame(link, encodeAppLen(appLen)); err != nil {
		return fmt.Errorf("dfu: send app length: %w", err)
	}
	if err := sendFrame(link, []byte{byte(packetLen)}); err != nil {
		return fmt.Errorf("dfu: send packet length: %w", err)
	}

	buf := make([]byte, packetLen)
	for offset := 0; offset < appLen; offset += packetLen {
		n := packetLen
		if offset+n > appLen {
			n = appLen - offset
		}
		got, err := fw.GetAppData(buf, offset, n)
		if err != nil {
			return fmt.Errorf("dfu: read app data at %d: %w", offset, err)
		}
		if err := sendFrame(link, buf[:got]); err != nil {
			return fmt.Errorf("dfu: send packet at offset %d: %w", offset, err)
		}
	}

	entry.Info("firmware download complete")
	return nil
}

func validateMeta(fw Firmware) error {
	format, ok := fw.GetMeta("FW-Format")
	if !ok || format != "BNO_V1" {
		return fmt.Errorf("dfu: unsupported FW-Format %q", format)
	}
	partNumber, ok := fw.GetMeta("SW-Part-Number")
	if !ok || !acceptedPartNumbers[partNumber] {
		return fmt.Errorf("dfu: unsupported SW-Part-Number %q", partNumber)
	}
	return nil
}

// encodeAppLen is the 4-byte big-endian total application length.
func encodeAppLen(appLen int) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(appLen))
	return b
}

// sendFrame appends a big-endian CRC16/XMODEM to payload, transmits it, and
// reads the single ACK byte, retrying the whole frame up to maxRetries
// times on mismatch.
func sendFrame(link hal.Interface, payload []byte) error {
	frame := make([]byte, len(payload)+2)
	copy(frame, payload)
	binary.BigEndian.PutUint16(frame[len(payload):], crc16XModem(payload))

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := link.Tx(frame); err != nil {
			lastErr = err
			continue
		}
		var ack [1]byte
		if err := link.Rx(ack[:]); err != nil {
			lastErr = err
			continue
		}
		if ack[0] == ackByte {
			return nil
		}
		lastErr = fmt.Errorf("unexpected ack byte %#x", ack[0])
	}
	return fmt.Errorf("dfu: no ack after %d attempts: %w", maxRetries, lastErr)
}

// crc16XModem computes a CRC-16 with the XMODEM polynomial 0x1021 but an
// initial value of 0xFFFF, no reflection, no final xor.
func crc16XModem(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = (crc << 1) ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}
