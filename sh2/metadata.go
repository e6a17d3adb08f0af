package sh2

// Metadata is the decoded form of a sensor's FRS metadata record, laid out
// little-endian across up to 72 32-bit words with a revision-dependent tail.
type Metadata struct {
	MeVersion  uint8
	MhVersion  uint8
	ShVersion  uint8
	Range      uint32
	Resolution uint32
	PowerMA    uint16
	Revision   uint16
	MinPeriodUS uint32
	FifoMax      uint16
	FifoReserved uint16
	BatchBufferBytes uint16
	VendorIDLen      uint16

	QPoint1 uint16 // revision >= 1
	QPoint2 uint16 // revision >= 1

	SensorSpecificLen uint16 // revision == 2
	SensorSpecific    []byte // revision == 2

	VendorID []byte
}

// decodeMetadata interprets words (already assembled in FRS-offset order)
// according to its revision 0/1/2 layout.
func decodeMetadata(words []uint32) Metadata {
	var m Metadata
	if len(words) < 7 {
		return m
	}
	w := func(i int) uint32 {
		if i < len(words) {
			return words[i]
		}
		return 0
	}

	m.MeVersion = uint8(w(0))
	m.MhVersion = uint8(w(0) >> 8)
	m.ShVersion = uint8(w(0) >> 16)
	m.Range = w(1)
	m.Resolution = w(2)
	m.PowerMA = uint16(w(3))
	m.Revision = uint16(w(3) >> 16)
	m.MinPeriodUS = w(4)
	m.FifoMax = uint16(w(5))
	m.FifoReserved = uint16(w(5) >> 16)
	m.BatchBufferBytes = uint16(w(6))
	m.VendorIDLen = uint16(w(6) >> 16)

	vendorWordStart := 7
	switch m.Revision {
	case 0:
		vendorWordStart = 7
	case 1:
		m.QPoint1 = uint16(w(7))
		m.QPoint2 = uint16(w(7) >> 16)
		vendorWordStart = 8
	default: // 2 and above use the rev-2 layout
		m.QPoint1 = uint16(w(7))
		m.QPoint2 = uint16(w(7) >> 16)
		m.SensorSpecificLen = uint16(w(8))
		ssWords := (int(m.SensorSpecificLen) + 3) / 4
		m.SensorSpecific = wordsToBytes(words, 9, int(m.SensorSpecificLen))
		vendorWordStart = 9 + ssWords
	}

	m.VendorID = wordsToBytes(words, vendorWordStart, int(m.VendorIDLen))
	return m
}

// wordsToBytes little-endian-unpacks n bytes starting at word index start.
func wordsToBytes(words []uint32, start, n int) []byte {
	if n <= 0 {
		return nil
	}
	out := make([]byte, 0, n)
	for i := 0; i < n; i++ {
		wordIdx := start + i/4
		if wordIdx >= len(words) {
			break
		}
		shift := uint((i % 4) * 8)
		out = append(out, byte(words[wordIdx]>>shift))
	}
	return out
}
