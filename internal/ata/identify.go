package ata

import "encoding/binary"

// IDENTIFY DEVICE data is a page of 256 little-endian 16-bit words.
// Word indices per ATA8-ACS.
const (
	idWordGeneralConfig = 0   // bit 15 zero for ATA devices
	idWordSATACap       = 76  // SATA capabilities; 0 or 0xffff on PATA
	idWordSCT           = 206 // SCT Command Transport support bits
)

func identifyWord(buf *Sector, word int) uint16 {
	return binary.LittleEndian.Uint16(buf[word*2:])
}

func idIsATA(buf *Sector) bool {
	return identifyWord(buf, idWordGeneralConfig)&0x8000 == 0
}

func idIsSATA(buf *Sector) bool {
	w := identifyWord(buf, idWordSATACap)
	return w != 0x0000 && w != 0xffff
}

func idSCTSupported(buf *Sector) bool {
	return identifyWord(buf, idWordSCT)&(1<<0) != 0
}

func idSCTDataTables(buf *Sector) bool {
	return identifyWord(buf, idWordSCT)&(1<<5) != 0
}
