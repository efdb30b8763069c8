package ata

import (
	"fmt"
	"strings"
)

// Strategy is the live-read strategy selected at probe time.
type Strategy int

const (
	// StrategySCTStatus re-reads the SCT status log on every read.
	StrategySCTStatus Strategy = iota
	// StrategySMARTAttribute re-scans the SMART attribute table on every
	// read. Only the current temperature is available.
	StrategySMARTAttribute
)

func (s Strategy) String() string {
	switch s {
	case StrategySCTStatus:
		return "sct"
	case StrategySMARTAttribute:
		return "smart"
	}
	return "unknown"
}

// Policy selects how the prober detects SCT capability. The hardware
// generations this engine supports detected it differently, and neither
// approach strictly supersedes the other, so the choice is exposed to
// configuration rather than hardcoded.
type Policy int

const (
	// PolicyIdentify issues IDENTIFY DEVICE through the transport and
	// gates the SCT probe on its capability bits (word 206).
	PolicyIdentify Policy = iota
	// PolicyDirect inspects cached identify data from the ATA
	// Information VPD page, requiring a SATA device, before attempting
	// the SCT status read.
	PolicyDirect
	// PolicyLegacy skips SCT entirely and reads the SMART attribute
	// table, recognizing attribute 231 as a temperature source.
	PolicyLegacy
)

func (p Policy) String() string {
	switch p {
	case PolicyIdentify:
		return "identify"
	case PolicyDirect:
		return "direct"
	case PolicyLegacy:
		return "legacy"
	}
	return "unknown"
}

// ParsePolicy parses a probing-policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "identify":
		return PolicyIdentify, nil
	case "direct":
		return PolicyDirect, nil
	case "legacy":
		return PolicyLegacy, nil
	}
	return 0, fmt.Errorf("unknown probe policy %q (want identify, direct or legacy)", s)
}

// Capabilities is the durable record produced by a successful probe. It
// is created once per attach and never modified afterwards: live reads
// consult it, and the limit values are served from it without ever being
// re-read from the drive.
type Capabilities struct {
	Strategy Strategy
	Policy   Policy

	// Populated only under StrategySCTStatus.
	HasLowest  bool
	HasHighest bool

	// Limits come from the SCT history table; the legacy attribute path
	// has no limit concept.
	HistoryLimits
}

// ataVendorID is the SCSI vendor identification libata reports for ATA
// devices behind SCSI.
const ataVendorID = "ATA     "

// Probe runs the capability-probing sequence once against a freshly
// attached device and returns its Capabilities record. On any error the
// device has no usable temperature source (or could not be talked to)
// and attach must be aborted; no partial record is ever returned.
func Probe(dev Device, policy Policy) (*Capabilities, error) {
	vendor, err := dev.InquiryVendor()
	if err != nil {
		return nil, &IoError{Op: "inquiry", Err: err}
	}
	if vendor != ataVendorID {
		return nil, ErrNotATA
	}

	if policy == PolicyLegacy {
		return probeAttributes(dev, policy, decodeLegacyAttributeTemp)
	}

	var buf Sector
	haveSCT := false
	haveTables := false

	switch policy {
	case PolicyIdentify:
		// A failed IDENTIFY is not fatal: the drive may still answer on
		// the attribute path.
		if err := dev.Execute(identifyCommand(), &buf); err == nil {
			haveSCT = idSCTSupported(&buf)
			haveTables = idSCTDataTables(&buf)
		}
	case PolicyDirect:
		id, err := dev.VPDIdentify()
		if err != nil {
			return nil, &IoError{Op: "vpd identify", Err: err}
		}
		if !idIsATA(id) || !idIsSATA(id) {
			return nil, ErrNotATA
		}
		haveSCT = idSCTSupported(id)
		haveTables = idSCTDataTables(id)
	}

	if haveSCT {
		if caps, ok := probeSCT(dev, policy, haveTables); ok {
			return caps, nil
		}
	}

	return probeAttributes(dev, policy, decodeAttributeTemp)
}

// probeSCT attempts the SCT status probe. It reports ok=false when SCT
// turns out to be unusable (transport failure, unknown log version, or
// a sentinel current temperature), which sends probing to the SMART
// attribute fallback for the lifetime of the session.
func probeSCT(dev Device, policy Policy, haveTables bool) (*Capabilities, bool) {
	var buf Sector
	if err := dev.Execute(smartCommand(featSMARTReadLog, sctStatusLogAddr, DirRead), &buf); err != nil {
		return nil, false
	}
	if v := sctStatusVersion(&buf); v != 2 && v != 3 {
		return nil, false
	}
	if !tempValid(buf[sctStatusTemp]) {
		return nil, false
	}

	caps := &Capabilities{
		Strategy:   StrategySCTStatus,
		Policy:     policy,
		HasLowest:  tempValid(buf[sctStatusTempLowest]),
		HasHighest: tempValid(buf[sctStatusTempHighest]),
	}

	// The history table is optional: a transport failure here downgrades
	// the limit capabilities but never aborts the attach.
	if haveTables {
		if limits, err := readHistoryLimits(dev); err == nil {
			caps.HistoryLimits = limits
		}
	}

	return caps, true
}

// probeAttributes is the mandatory SMART fallback: a full read-values
// round trip plus decode must succeed, otherwise attach fails.
func probeAttributes(dev Device, policy Policy, decode func(*Sector) (int32, error)) (*Capabilities, error) {
	var buf Sector
	if err := dev.Execute(smartCommand(featSMARTReadValues, 0, DirRead), &buf); err != nil {
		return nil, &IoError{Op: "smart read values", Err: err}
	}
	if _, err := decode(&buf); err != nil {
		return nil, err
	}
	return &Capabilities{Strategy: StrategySMARTAttribute, Policy: policy}, nil
}

// readHistoryLimits requests the temperature history table (a write-log
// naming table id 2, then a read-log to fetch it) and decodes the limit
// bytes.
func readHistoryLimits(dev Transport) (HistoryLimits, error) {
	var buf Sector
	buf[0] = 5 // data table command
	buf[2] = 1 // read table
	buf[4] = 2 // temperature history table

	if err := dev.Execute(smartCommand(featSMARTWriteLog, sctStatusLogAddr, DirWrite), &buf); err != nil {
		return HistoryLimits{}, &IoError{Op: "sct data table request", Err: err}
	}
	if err := dev.Execute(smartCommand(featSMARTReadLog, sctDataLogAddr, DirRead), &buf); err != nil {
		return HistoryLimits{}, &IoError{Op: "sct data table read", Err: err}
	}
	return decodeHistoryLimits(&buf), nil
}
