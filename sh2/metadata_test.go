package sh2

import "testing"

// Scenario E (spec.md §8): a revision-2 FRS metadata record decodes power,
// qPoint1/2, vendorIdLen/sensorSpecificLen, and the vendor-byte offset
// correctly.
func TestDecodeMetadataRevision2(t *testing.T) {
	words := []uint32{
		0x00030201,             // me/mh/sh version
		0x00100000,             // range
		0x0000ABCD,             // resolution
		0x00020100,             // power_mA=0x0100 (low16), revision=2 (high16)
		1000,                   // minPeriod_uS
		0,                      // fifoMax/fifoReserved
		0x000A0000,             // batchBufferBytes=0, vendorIdLen=10
		0x0002000A,             // qPoint1=0x000A, qPoint2=0x0002
		0x00000004,             // sensorSpecificLen=4
		0x04030201,             // sensor-specific bytes
		0x44434241,             // vendor bytes start here (word index 10)
		0x00004645,
	}

	md := decodeMetadata(words)

	if md.Revision != 2 {
		t.Fatalf("revision = %d, want 2", md.Revision)
	}
	if md.PowerMA != 0x0100 {
		t.Fatalf("powerMA = %#x, want 0x0100", md.PowerMA)
	}
	if md.QPoint1 != 0x000A || md.QPoint2 != 0x0002 {
		t.Fatalf("qPoint1/2 = %#x/%#x, want 0xA/0x2", md.QPoint1, md.QPoint2)
	}
	if md.VendorIDLen != 10 {
		t.Fatalf("vendorIdLen = %d, want 10", md.VendorIDLen)
	}
	if md.SensorSpecificLen != 4 {
		t.Fatalf("sensorSpecificLen = %d, want 4", md.SensorSpecificLen)
	}
	if len(md.SensorSpecific) != 4 {
		t.Fatalf("len(sensorSpecific) = %d, want 4", len(md.SensorSpecific))
	}
	wantVendorWord := 9 + 1 // 9 + ceil(4/4)
	gotVendorWord := 9 + (int(md.SensorSpecificLen)+3)/4
	if gotVendorWord != wantVendorWord {
		t.Fatalf("vendor word index = %d, want %d", gotVendorWord, wantVendorWord)
	}
}

func TestDecodeMetadataRevision0HasNoQPoints(t *testing.T) {
	words := []uint32{0, 0, 0, 0, 0, 0, 0, 0x41424344}
	md := decodeMetadata(words)
	if md.Revision != 0 {
		t.Fatalf("revision = %d, want 0", md.Revision)
	}
	if md.QPoint1 != 0 || md.QPoint2 != 0 {
		t.Fatalf("revision 0 must not populate qPoint fields")
	}
}
