// Package sh2 implements the sensor-hub application protocol layered on
// shtp: command/response transactions, FRS record access, calibration and
// tare control, and the input-report demultiplexer that reconstructs
// per-event timestamps. Grounded on original_source/sh2.c.
package sh2

// App/channel names the sensorhub protocol advertises, from
// original_source/sh2.c's channel table.
const (
	appNameExecutable = "executable"
	chanNameDevice     = "device"

	appNameSensorHub = "sensorhub"
	chanNameControl  = "control"
	chanNameInputNormal = "inputNormal"
	chanNameInputWake   = "inputWake"
	chanNameGyroRV      = "gyroRotationVector"
)

// Control-channel report IDs. 0xEF-0xFE are reserved for the control
// reports below, per spec.md §6; values taken from original_source/sh2.c.
const (
	reportIDFlushCompleted     uint8 = 0xEF
	reportIDForceFlushReq      uint8 = 0xF0
	reportIDFrsReadResp        uint8 = 0xF3
	reportIDFrsReadReq         uint8 = 0xF4
	reportIDFrsWriteResp       uint8 = 0xF5
	reportIDFrsWriteDataReq    uint8 = 0xF6
	reportIDFrsWriteReq        uint8 = 0xF7
	reportIDProdIDResp         uint8 = 0xF8
	reportIDProdIDReq          uint8 = 0xF9
	reportIDTimestampRebase    uint8 = 0xFA
	reportIDBaseTimestampRef   uint8 = 0xFB
	reportIDGetFeatureResp     uint8 = 0xFC
	reportIDSetFeatureCmd      uint8 = 0xFD
	reportIDGetFeatureReq      uint8 = 0xFE
	reportIDCommandResp        uint8 = 0xF1
	reportIDCommandReq         uint8 = 0xF2
)

// Executable-app device-channel values.
const execResetComplete = 0x01

// Command-request sub-commands carried in CommandReq.Command.
const (
	cmdErrors        uint8 = 1
	cmdCounts        uint8 = 2
	cmdTare          uint8 = 3
	cmdInitialize    uint8 = 4
	cmdFRS           uint8 = 5
	cmdSaveDCD       uint8 = 6
	cmdMeCal         uint8 = 7
	cmdSync          uint8 = 8
	cmdDcdAutoSave   uint8 = 9
	cmdGetOscType    uint8 = 10
	cmdClearDCD      uint8 = 11
)

// Sub-command parameters for cmdInitialize.
const initSystem uint8 = 1

// Sub-command parameters for cmdTare (p[0]).
const (
	tareNow             uint8 = 0
	tarePersist         uint8 = 1
	tareSetReorientation uint8 = 2
)

// Sub-command parameters for cmdCounts (p[0]).
const (
	countsGet   uint8 = 0
	countsClear uint8 = 1
)

// Sub-command parameters for cmdSync (p[0]).
const (
	syncRv     uint8 = 0
	syncExtSet uint8 = 1
)

// FRS read/write status codes, low nibble of FrsReadResp.LenStatus or
// FrsWriteResp.Status. Grounded on original_source/sh2.c's FRS_WRITE_STATUS_*
// / FRS_READ_STATUS_* enums.
const (
	frsStatusWriteReceived              uint8 = 1
	frsStatusWriteUnrecognized          uint8 = 2
	frsStatusWriteBusy                  uint8 = 3
	frsStatusWriteCompleted             uint8 = 4
	frsStatusWriteReady                 uint8 = 5
	frsStatusWriteFailed                uint8 = 6
	frsStatusWriteInvalidLength         uint8 = 7
	frsStatusWriteRecordValid           uint8 = 8
	frsStatusWriteInvalidRecord         uint8 = 9
	frsStatusWriteDeviceError           uint8 = 10

	frsStatusReadNoRecord             uint8 = 0
	frsStatusReadUnrecognizedFRSType  uint8 = 1
	frsStatusReadBusy                 uint8 = 2
	frsStatusReadRecordCompleted      uint8 = 3
	frsStatusReadBlockCompleted       uint8 = 4
	frsStatusReadBlockAndRecordDone   uint8 = 5
	frsStatusReadRecordEmpty          uint8 = 6
	frsStatusReadOffsetOutOfRange     uint8 = 7
	frsStatusReadDeviceError          uint8 = 8
)

// Async event IDs delivered to a client's EventCallback.
const (
	EventReset     uint8 = 1
	EventFRSChange uint8 = 2
)

// SensorID enumerates the sensor report IDs the hub can produce, from
// original_source/sh2.c's sensor id table. Input-channel reports that aren't
// one of the two timestamp-meta IDs carry one of these as their first byte.
type SensorID uint8

const (
	SensorAccelerometer           SensorID = 0x01
	SensorGyroscopeCalibrated     SensorID = 0x02
	SensorMagneticFieldCalibrated SensorID = 0x03
	SensorLinearAcceleration      SensorID = 0x04
	SensorRotationVector          SensorID = 0x05
	SensorGravity                 SensorID = 0x06
	SensorGyroscopeUncalibrated   SensorID = 0x07
	SensorGameRotationVector      SensorID = 0x08
	SensorGeomagneticRotationVector SensorID = 0x09
	SensorPressure                SensorID = 0x0A
	SensorAmbientLight            SensorID = 0x0B
	SensorHumidity                SensorID = 0x0C
	SensorProximity               SensorID = 0x0D
	SensorTemperature              SensorID = 0x0E
	SensorMagneticFieldUncalibrated SensorID = 0x0F
	SensorTapDetector              SensorID = 0x10
	SensorStepCounter              SensorID = 0x11
	SensorSignificantMotion        SensorID = 0x12
	SensorStabilityClassifier      SensorID = 0x13
	SensorRawAccelerometer         SensorID = 0x14
	SensorRawGyroscope             SensorID = 0x15
	SensorRawMagnetometer          SensorID = 0x16
	SensorStepDetector             SensorID = 0x18
	SensorShakeDetector            SensorID = 0x19
	SensorFlipDetector             SensorID = 0x1A
	SensorPickupDetector           SensorID = 0x1B
	SensorStabilityDetector        SensorID = 0x1C
	SensorPersonalActivityClassifier SensorID = 0x1D
	SensorSleepDetector            SensorID = 0x1E
	SensorTiltDetector             SensorID = 0x1F
	SensorPocketDetector           SensorID = 0x20
	SensorCircleDetector           SensorID = 0x21
	SensorHeartRateMonitor         SensorID = 0x22
	SensorGyroIntegratedRotationVector SensorID = 0x2A
)

// MaxReportLenEntries bounds the learned report-id -> length table (spec.md
// §3, "≤64 entries").
const MaxReportLenEntries = 64

// MaxFrsWords bounds the FRS scratch buffer (spec.md §3, "up to 72 32-bit
// words").
const MaxFrsWords = 72

// MaxProdIds bounds a single getProdIds response buffer a caller may supply.
const MaxProdIds = 5

// MaxErrorRecords bounds a single getErrors response buffer.
const MaxErrorRecords = 64
