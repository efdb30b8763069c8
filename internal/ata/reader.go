package ata

// Reader performs live temperature reads using the strategy selected at
// probe time. It never mutates the Capabilities record and never
// switches strategy: a live-read failure is surfaced per call, and the
// session keeps the strategy it attached with.
type Reader struct {
	dev  Transport
	caps *Capabilities
}

// NewReader binds a probed Capabilities record to the transport it was
// probed through.
func NewReader(dev Transport, caps *Capabilities) *Reader {
	return &Reader{dev: dev, caps: caps}
}

// Capabilities returns a copy of the immutable capability record.
func (r *Reader) Capabilities() Capabilities {
	return *r.caps
}

// Read returns the requested temperature in milli-degrees Celsius.
// Under the SMART attribute strategy only the current temperature
// exists; under SCT, lowest/highest are rejected when probing found
// them unpopulated.
func (r *Reader) Read(field Field) (int32, error) {
	switch r.caps.Strategy {
	case StrategySCTStatus:
		return r.readSCT(field)
	default:
		return r.readAttributes(field)
	}
}

func (r *Reader) readSCT(field Field) (int32, error) {
	switch field {
	case FieldLowest:
		if !r.caps.HasLowest {
			return 0, ErrInvalidArgument
		}
	case FieldHighest:
		if !r.caps.HasHighest {
			return 0, ErrInvalidArgument
		}
	}

	var buf Sector
	if err := r.dev.Execute(smartCommand(featSMARTReadLog, sctStatusLogAddr, DirRead), &buf); err != nil {
		return 0, &IoError{Op: "sct status read", Err: err}
	}
	return sctStatusTempAt(&buf, field)
}

func (r *Reader) readAttributes(field Field) (int32, error) {
	if field != FieldCurrent {
		return 0, ErrInvalidArgument
	}

	var buf Sector
	if err := r.dev.Execute(smartCommand(featSMARTReadValues, 0, DirRead), &buf); err != nil {
		return 0, &IoError{Op: "smart read values", Err: err}
	}
	if r.caps.Policy == PolicyLegacy {
		return decodeLegacyAttributeTemp(&buf)
	}
	return decodeAttributeTemp(&buf)
}
