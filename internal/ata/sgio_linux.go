//go:build linux

package ata

import (
	"fmt"
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// SCSI generic (sg) ioctl constants, from <scsi/sg.h>.
const (
	sgIO = 0x2285

	sgDxferToDev   = -2
	sgDxferFromDev = -3

	sgInfoOKMask = 0x1
	sgInfoOK     = 0x0

	// Per-command timeout in milliseconds.
	sgTimeoutMillis = 5000
)

// SCSI opcodes used by this transport.
const (
	scsiInquiry       = 0x12
	scsiATAPassThru16 = 0x85
)

const (
	inquiryReplyLen = 96
	vpdATAInfoPage  = 0x89
	vpdATAInfoLen   = 572 // header + strings + 512 bytes of identify data
	senseBufLen     = 32
)

// sgIOHdr mirrors sg_io_hdr_t from <scsi/sg.h>.
type sgIOHdr struct {
	interfaceID    int32
	dxferDirection int32
	cmdLen         uint8
	mxSbLen        uint8
	iovecCount     uint16
	dxferLen       uint32
	dxferp         uintptr
	cmdp           uintptr
	sbp            uintptr
	timeout        uint32
	flags          uint32
	packID         int32
	usrPtr         uintptr
	status         uint8
	maskedStatus   uint8
	msgStatus      uint8
	sbLenWr        uint8
	hostStatus     uint16
	driverStatus   uint16
	resid          int32
	duration       uint32
	info           uint32
}

// sgioError carries the SCSI status triple of a failed exchange
// (a device check condition rather than a syscall failure).
type sgioError struct {
	scsiStatus   uint8
	hostStatus   uint16
	driverStatus uint16
}

func (e *sgioError) Error() string {
	return fmt.Sprintf("SCSI status: %#02x, host status: %#02x, driver status: %#02x",
		e.scsiStatus, e.hostStatus, e.driverStatus)
}

// SGIODevice is the Linux command transport: it wraps ATA commands in
// SCSI ATA PASS-THROUGH(16) CDBs and issues them through the SG_IO
// ioctl. The mutex serializes exchanges so that one CDB and one sector
// buffer are in flight per device at a time.
type SGIODevice struct {
	name string

	mu sync.Mutex
	fd int
}

// OpenSGIO opens a SCSI block device (e.g. /dev/sda) for passthrough.
func OpenSGIO(name string) (*SGIODevice, error) {
	fd, err := unix.Open(name, unix.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", name, err)
	}
	return &SGIODevice{name: name, fd: fd}, nil
}

// Name returns the device path this transport was opened with.
func (d *SGIODevice) Name() string { return d.name }

// Close releases the device file descriptor.
func (d *SGIODevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return unix.Close(d.fd)
}

// Execute implements Transport.
func (d *SGIODevice) Execute(cmd Command, data *Sector) error {
	var cdb [16]byte
	cdb[0] = scsiATAPassThru16

	dir := int32(sgDxferFromDev)
	if cmd.Direction == DirWrite {
		cdb[1] = 5 << 1 // PIO Data-out
		cdb[2] = 0x06   // write to device, block count in sector count
		dir = sgDxferToDev
	} else {
		cdb[1] = 4 << 1 // PIO Data-in
		cdb[2] = 0x0e   // read from device, block count in sector count
	}
	cdb[4] = cmd.Feature
	cdb[6] = 1 // one sector
	cdb[8] = cmd.LBALow
	cdb[10] = cmd.LBAMid
	cdb[12] = cmd.LBAHigh
	cdb[14] = cmd.Opcode

	return d.exec(cdb[:], dir, data[:])
}

// exec performs one SG_IO round trip under the device mutex.
func (d *SGIODevice) exec(cdb []byte, dir int32, data []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	senseBuf := make([]byte, senseBufLen)
	hdr := sgIOHdr{
		interfaceID:    'S',
		dxferDirection: dir,
		timeout:        sgTimeoutMillis,
		cmdLen:         uint8(len(cdb)),
		mxSbLen:        uint8(len(senseBuf)),
		dxferLen:       uint32(len(data)),
		dxferp:         uintptr(unsafe.Pointer(&data[0])),
		cmdp:           uintptr(unsafe.Pointer(&cdb[0])),
		sbp:            uintptr(unsafe.Pointer(&senseBuf[0])),
	}

	if _, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), sgIO, uintptr(unsafe.Pointer(&hdr))); errno != 0 {
		return fmt.Errorf("SG_IO on %s: %w", d.name, errno)
	}

	// See http://www.t10.org/lists/2status.htm for SCSI status codes.
	if hdr.info&sgInfoOKMask != sgInfoOK {
		return &sgioError{
			scsiStatus:   hdr.status,
			hostStatus:   hdr.hostStatus,
			driverStatus: hdr.driverStatus,
		}
	}
	return nil
}

// InquiryVendor implements Device using standard INQUIRY data.
func (d *SGIODevice) InquiryVendor() (string, error) {
	resp := make([]byte, inquiryReplyLen)

	var cdb [6]byte
	cdb[0] = scsiInquiry
	cdb[3] = byte(len(resp) >> 8)
	cdb[4] = byte(len(resp))

	if err := d.exec(cdb[:], sgDxferFromDev, resp); err != nil {
		return "", err
	}
	return string(resp[8:16]), nil
}

// VPDIdentify implements Device: it reads the ATA Information VPD page
// and returns the IDENTIFY DEVICE data embedded in it.
func (d *SGIODevice) VPDIdentify() (*Sector, error) {
	resp := make([]byte, 1024)

	var cdb [6]byte
	cdb[0] = scsiInquiry
	cdb[1] = 0x01 // EVPD
	cdb[2] = vpdATAInfoPage
	cdb[3] = byte(len(resp) >> 8)
	cdb[4] = byte(len(resp))

	if err := d.exec(cdb[:], sgDxferFromDev, resp); err != nil {
		return nil, err
	}
	if resp[1] != vpdATAInfoPage {
		return nil, fmt.Errorf("%s: unexpected VPD page %#02x", d.name, resp[1])
	}
	if pageLen := int(resp[2])<<8 | int(resp[3]); pageLen+4 < vpdATAInfoLen {
		return nil, fmt.Errorf("%s: truncated ATA Information VPD page (%d bytes)", d.name, pageLen+4)
	}
	// Byte 56 holds the command opcode the identify data answers to;
	// anything but IDENTIFY DEVICE means an ATAPI or foreign device.
	if resp[56] != cmdIdentifyDevice {
		return nil, ErrNotATA
	}

	var id Sector
	copy(id[:], resp[60:60+SectorSize])
	return &id, nil
}
