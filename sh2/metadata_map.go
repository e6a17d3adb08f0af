package sh2

// FrsType identifies a hub-resident configuration/metadata blob, addressed
// in 32-bit words (spec.md GLOSSARY "FRS record").
type FrsType uint16

// Metadata-record FRS types, one per sensor, from
// original_source/sh2.c's sensorToRecordMap (SPEC_FULL.md §4.2a). Each
// value is derived as 0x1000 | the sensor's own report id; these are not
// the hub's FRS_ID_META_* constants (see DESIGN.md).
const metaBase FrsType = 0x1000

func metaFrsType(id SensorID) FrsType {
	return metaBase | FrsType(id)
}

// sensorToRecordMap resolves a SensorID to the FRS record type backing its
// getMetadata call. An absent entry means getMetadata is not defined for
// that sensor (spec.md §4.2a: "unmapped SensorId returns ErrBadParam before
// starting any operation").
var sensorToRecordMap = map[SensorID]FrsType{
	SensorAccelerometer:                metaFrsType(SensorAccelerometer),
	SensorGyroscopeCalibrated:          metaFrsType(SensorGyroscopeCalibrated),
	SensorMagneticFieldCalibrated:      metaFrsType(SensorMagneticFieldCalibrated),
	SensorLinearAcceleration:           metaFrsType(SensorLinearAcceleration),
	SensorRotationVector:               metaFrsType(SensorRotationVector),
	SensorGravity:                      metaFrsType(SensorGravity),
	SensorGyroscopeUncalibrated:        metaFrsType(SensorGyroscopeUncalibrated),
	SensorGameRotationVector:           metaFrsType(SensorGameRotationVector),
	SensorGeomagneticRotationVector:    metaFrsType(SensorGeomagneticRotationVector),
	SensorPressure:                     metaFrsType(SensorPressure),
	SensorAmbientLight:                 metaFrsType(SensorAmbientLight),
	SensorHumidity:                     metaFrsType(SensorHumidity),
	SensorProximity:                    metaFrsType(SensorProximity),
	SensorTemperature:                  metaFrsType(SensorTemperature),
	SensorMagneticFieldUncalibrated:    metaFrsType(SensorMagneticFieldUncalibrated),
	SensorTapDetector:                  metaFrsType(SensorTapDetector),
	SensorStepCounter:                  metaFrsType(SensorStepCounter),
	SensorSignificantMotion:            metaFrsType(SensorSignificantMotion),
	SensorStabilityClassifier:          metaFrsType(SensorStabilityClassifier),
	SensorRawAccelerometer:             metaFrsType(SensorRawAccelerometer),
	SensorRawGyroscope:                 metaFrsType(SensorRawGyroscope),
	SensorRawMagnetometer:              metaFrsType(SensorRawMagnetometer),
	SensorStepDetector:                 metaFrsType(SensorStepDetector),
	SensorShakeDetector:                metaFrsType(SensorShakeDetector),
	SensorFlipDetector:                 metaFrsType(SensorFlipDetector),
	SensorPickupDetector:               metaFrsType(SensorPickupDetector),
	SensorStabilityDetector:            metaFrsType(SensorStabilityDetector),
	SensorPersonalActivityClassifier:   metaFrsType(SensorPersonalActivityClassifier),
	SensorSleepDetector:                metaFrsType(SensorSleepDetector),
	SensorTiltDetector:                 metaFrsType(SensorTiltDetector),
	SensorPocketDetector:               metaFrsType(SensorPocketDetector),
	SensorCircleDetector:               metaFrsType(SensorCircleDetector),
	SensorHeartRateMonitor:             metaFrsType(SensorHeartRateMonitor),
	SensorGyroIntegratedRotationVector: metaFrsType(SensorGyroIntegratedRotationVector),
}

// MetadataFrsType resolves sensorID to its getMetadata FRS record type.
func MetadataFrsType(sensorID SensorID) (FrsType, bool) {
	t, ok := sensorToRecordMap[sensorID]
	return t, ok
}
