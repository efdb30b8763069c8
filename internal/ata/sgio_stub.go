//go:build !linux

package ata

import "errors"

// ErrUnsupportedPlatform is returned by OpenSGIO on platforms without
// SCSI generic passthrough support.
var ErrUnsupportedPlatform = errors.New("SCSI passthrough is only supported on Linux")

// SGIODevice is a placeholder on non-Linux platforms.
type SGIODevice struct{}

// OpenSGIO always fails on non-Linux platforms.
func OpenSGIO(name string) (*SGIODevice, error) {
	return nil, ErrUnsupportedPlatform
}

func (d *SGIODevice) Name() string { return "" }
func (d *SGIODevice) Close() error { return nil }

func (d *SGIODevice) Execute(cmd Command, data *Sector) error {
	return ErrUnsupportedPlatform
}

func (d *SGIODevice) InquiryVendor() (string, error) {
	return "", ErrUnsupportedPlatform
}

func (d *SGIODevice) VPDIdentify() (*Sector, error) {
	return nil, ErrUnsupportedPlatform
}
