package ata

// Direction selects the data-transfer direction of a command exchange.
type Direction int

const (
	// DirRead transfers one sector from the device into the buffer.
	DirRead Direction = iota
	// DirWrite transfers one sector from the buffer to the device. Used
	// only for the "request log" step preceding an SCT history read.
	DirWrite
)

// Command describes a single ATA command carried over the generic
// 16-byte command-descriptor convention. Every exchange transfers
// exactly one sector.
type Command struct {
	Opcode    byte
	Feature   byte
	LBALow    byte
	LBAMid    byte
	LBAHigh   byte
	Direction Direction
}

// smartCommand builds a SMART subcommand with the fixed LBA signature.
func smartCommand(feature, lbaLow byte, dir Direction) Command {
	return Command{
		Opcode:    cmdSMART,
		Feature:   feature,
		LBALow:    lbaLow,
		LBAMid:    smartLBAMid,
		LBAHigh:   smartLBAHigh,
		Direction: dir,
	}
}

// identifyCommand builds an IDENTIFY DEVICE read.
func identifyCommand() Command {
	return Command{Opcode: cmdIdentifyDevice, Direction: DirRead}
}

// Transport issues one ATA command and transfers exactly one sector.
// Execute blocks until the exchange completes or the transport's own
// timeout fires, and must serialize concurrent callers against the same
// device; the sector buffer is owned by the caller and is meaningless on
// error. Transport failures are returned as-is and wrapped into IoError
// by this package's callers.
type Transport interface {
	Execute(cmd Command, data *Sector) error
}

// Device is a Transport that can additionally report the SCSI-level
// identity of the device behind it, which the prober needs for its
// ATA check.
type Device interface {
	Transport

	// InquiryVendor returns the 8-character SCSI vendor identification
	// from standard INQUIRY data.
	InquiryVendor() (string, error)

	// VPDIdentify returns the cached IDENTIFY DEVICE data carried in the
	// ATA Information VPD page, for transports that expose it. Probing
	// policies that do not rely on VPD data never call it.
	VPDIdentify() (*Sector, error)
}
