package ata

// Field selects which temperature a live read returns.
type Field int

const (
	FieldCurrent Field = iota
	FieldLowest
	FieldHighest
)

func (f Field) String() string {
	switch f {
	case FieldCurrent:
		return "current"
	case FieldLowest:
		return "lowest"
	case FieldHighest:
		return "highest"
	}
	return "unknown"
}

// sctStatusVersion returns the SCT status log format version. Versions 2
// and 3 are the ones this engine understands.
func sctStatusVersion(buf *Sector) uint16 {
	return uint16(buf[sctStatusVersionHigh])<<8 | uint16(buf[sctStatusVersionLow])
}

// sctStatusTempAt decodes the requested temperature field from an SCT
// status sector. No sentinel check happens here: whether lowest/highest
// are populated at all is decided once, at probe time.
func sctStatusTempAt(buf *Sector, field Field) (int32, error) {
	switch field {
	case FieldCurrent:
		return sctMilli(buf[sctStatusTemp]), nil
	case FieldLowest:
		return sctMilli(buf[sctStatusTempLowest]), nil
	case FieldHighest:
		return sctMilli(buf[sctStatusTempHighest]), nil
	}
	return 0, ErrInvalidArgument
}

// HistoryLimits holds the static limit values from the SCT temperature
// history table. Each value is meaningful only when its Has flag is set;
// a sentinel byte in the table clears the flag independently of the
// others.
type HistoryLimits struct {
	HasMin   bool
	HasMax   bool
	HasLCrit bool
	HasCrit  bool
	Min      int32 // milli-degrees Celsius
	Max      int32
	LCrit    int32
	Crit     int32
}

// decodeHistoryLimits decodes the four fixed-offset limit bytes from an
// SCT temperature history table sector.
func decodeHistoryLimits(buf *Sector) HistoryLimits {
	return HistoryLimits{
		HasMax:   tempValid(buf[sctHistTempMax]),
		HasCrit:  tempValid(buf[sctHistTempCrit]),
		HasMin:   tempValid(buf[sctHistTempMin]),
		HasLCrit: tempValid(buf[sctHistTempLCrit]),
		Max:      sctMilli(buf[sctHistTempMax]),
		Crit:     sctMilli(buf[sctHistTempCrit]),
		Min:      sctMilli(buf[sctHistTempMin]),
		LCrit:    sctMilli(buf[sctHistTempLCrit]),
	}
}
