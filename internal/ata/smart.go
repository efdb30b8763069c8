package ata

// checksumOK sums the whole sector; the SMART READ VALUES format
// constrains the 512 bytes to sum to zero mod 256.
func checksumOK(buf *Sector) bool {
	var sum byte
	for _, b := range buf {
		sum += b
	}
	return sum == 0
}

// decodeAttributeTemp extracts a temperature from a SMART READ VALUES
// sector. Attribute 194 (Temperature Celsius) is preferred; 190 (Airflow
// Temperature) is the fallback. 194 wins even when 190 appears earlier
// in the table. The raw byte is unsigned here, unlike the SCT logs.
func decodeAttributeTemp(buf *Sector) (int32, error) {
	if !checksumOK(buf) {
		return 0, ErrChecksum
	}

	var raw byte
	have := false

	nattrs := min(maxSMARTAttrs, SectorSize/smartAttrSize)
	for i := 0; i < nattrs; i++ {
		attr := buf[i*smartAttrSize:]
		switch attr[2] {
		case 0:
			// Unused slot, not end of table.
		case attrTempAirflow:
			raw = attr[7]
			have = true
		case attrTempCelsius:
			return int32(attr[7]) * 1000, nil
		}
	}

	if have {
		return int32(raw) * 1000, nil
	}
	return 0, ErrNotSupported
}

// decodeLegacyAttributeTemp is the oldest-generation strategy: any of
// attributes 190, 194 or 231 counts as a temperature source, first match
// wins, with no 194-over-190 preference.
func decodeLegacyAttributeTemp(buf *Sector) (int32, error) {
	if !checksumOK(buf) {
		return 0, ErrChecksum
	}

	nattrs := min(maxSMARTAttrs, SectorSize/smartAttrSize)
	for i := 0; i < nattrs; i++ {
		attr := buf[i*smartAttrSize:]
		switch attr[2] {
		case attrTempAirflow, attrTempCelsius, attrTempLegacy:
			return int32(attr[7]) * 1000, nil
		}
	}
	return 0, ErrNotSupported
}
