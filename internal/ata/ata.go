// Package ata implements the ATA/SATA drive-temperature sensing engine.
//
// The primary means to read drive temperatures and temperature limits is
// the SCT Command Transport feature set (ATA8-ACS): the SCT status log
// carries the current, lowest and highest temperatures, and the SCT
// temperature history table carries the drive's static limits. Drives
// without SCT may still report a temperature through the legacy SMART
// attribute table (attributes 194 and 190, plus 231 on the oldest
// generation). Probe runs the capability sequence once per device and
// selects a read strategy; Reader performs live reads against it.
//
// All temperatures cross the package boundary in milli-degrees Celsius.
package ata

// SectorSize is the fixed transfer size of every command exchange.
const SectorSize = 512

// Sector is the 512-byte buffer returned by (or sent with) one command
// exchange. It is ephemeral: the next command overwrites it, and decoders
// own it only for the duration of a single probe or read step.
type Sector [SectorSize]byte

// ATA opcodes.
const (
	cmdSMART          = 0xb0
	cmdIdentifyDevice = 0xec
)

// SMART feature register values.
const (
	featSMARTReadValues = 0xd0
	featSMARTReadLog    = 0xd5
	featSMARTWriteLog   = 0xd6
)

// SMART commands carry a fixed signature in the LBA mid/high registers.
const (
	smartLBAMid  = 0x4f
	smartLBAHigh = 0xc2
)

// SCT log addresses.
const (
	sctStatusLogAddr = 0xe0
	sctDataLogAddr   = 0xe1
)

// SCT status log byte offsets.
const (
	sctStatusVersionLow  = 0
	sctStatusVersionHigh = 1
	sctStatusTemp        = 200
	sctStatusTempLowest  = 201
	sctStatusTempHighest = 202
)

// SCT temperature history table limit byte offsets.
const (
	sctHistTempMax   = 6
	sctHistTempCrit  = 7
	sctHistTempMin   = 8
	sctHistTempLCrit = 9
)

// invalidTemp is the sentinel meaning "this field is not populated" in
// SCT logs.
const invalidTemp = 0x80

// SMART attribute table layout.
const (
	maxSMARTAttrs = 30
	smartAttrSize = 12

	attrTempAirflow = 190
	attrTempCelsius = 194
	attrTempLegacy  = 231
)

// sctMilli interprets an SCT temperature byte as signed and scales it to
// milli-degrees Celsius. Callers are expected to have handled the
// invalidTemp sentinel where it matters.
func sctMilli(raw byte) int32 {
	return int32(int8(raw)) * 1000
}

// tempValid reports whether an SCT temperature byte is populated.
func tempValid(raw byte) bool {
	return raw != invalidTemp
}
