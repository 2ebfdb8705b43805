package lis3mdl

import (
	"encoding/binary"
	"fmt"

	"gpsbridge/internal/i2c"
)

// Minimal LIS3MDL magnetometer driver.
//
// Supports chip ID check, continuous-conversion configuration and reading
// the three field axes plus die temperature.

const (
	addrDefault = 0x1C // SA1 tied low

	regWhoAmI   = 0x0F
	chipID      = 0x3D
	regCtrl1    = 0x20
	regCtrl2    = 0x21
	regCtrl3    = 0x22
	regCtrl4    = 0x23
	regCtrl5    = 0x24
	regStatus   = 0x27
	regOutXL    = 0x28
	regTempOutL = 0x2E

	// ST I2C auto-increment: set bit 7 of the subaddress.
	autoIncrement = 0x80

	// STATUS_REG: new X/Y/Z data available.
	statusZYXDA = 0x08

	// Sensitivity at ±4 gauss full scale.
	lsbPerGauss = 6842.0
	// Temperature: 8 LSB per degree C, zero at 25 C.
	lsbPerDegC = 8.0
	tempZeroC  = 25.0
)

type Device struct {
	dev regIO
}

type regIO interface {
	ReadRegU8(reg byte) (byte, error)
	ReadReg(reg byte, dst []byte) error
	WriteReg(reg, value byte) error
}

// Sample is one magnetometer reading. Field values are in gauss.
type Sample struct {
	X, Y, Z float64
	TempC   float64
}

func DefaultAddress() uint16 { return addrDefault }

func New(dev *i2c.Dev) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lis3mdl: dev is nil")
	}
	return newWithIO(dev)
}

func newWithIO(dev regIO) (*Device, error) {
	if dev == nil {
		return nil, fmt.Errorf("lis3mdl: dev is nil")
	}
	d := &Device{dev: dev}

	id, err := d.dev.ReadRegU8(regWhoAmI)
	if err != nil {
		return nil, fmt.Errorf("lis3mdl: id read failed: %w", err)
	}
	if id != chipID {
		return nil, fmt.Errorf("lis3mdl: chip id=0x%02X want 0x%02X", id, chipID)
	}

	// CTRL_REG1: temperature sensor on, high-performance XY, 10 Hz.
	if err := d.dev.WriteReg(regCtrl1, 0b1110_1000); err != nil {
		return nil, fmt.Errorf("lis3mdl: ctrl1 write failed: %w", err)
	}
	// CTRL_REG2: ±4 gauss full scale.
	if err := d.dev.WriteReg(regCtrl2, 0x00); err != nil {
		return nil, fmt.Errorf("lis3mdl: ctrl2 write failed: %w", err)
	}
	// CTRL_REG3: continuous conversion.
	if err := d.dev.WriteReg(regCtrl3, 0x00); err != nil {
		return nil, fmt.Errorf("lis3mdl: ctrl3 write failed: %w", err)
	}
	// CTRL_REG4: high-performance Z, little endian output.
	if err := d.dev.WriteReg(regCtrl4, 0b0000_1100); err != nil {
		return nil, fmt.Errorf("lis3mdl: ctrl4 write failed: %w", err)
	}
	// CTRL_REG5: block data update so LSB/MSB pairs are coherent.
	if err := d.dev.WriteReg(regCtrl5, 0b0100_0000); err != nil {
		return nil, fmt.Errorf("lis3mdl: ctrl5 write failed: %w", err)
	}

	return d, nil
}

// DataReady reports whether a new XYZ sample is available.
func (d *Device) DataReady() (bool, error) {
	st, err := d.dev.ReadRegU8(regStatus)
	if err != nil {
		return false, fmt.Errorf("lis3mdl: status read failed: %w", err)
	}
	return st&statusZYXDA != 0, nil
}

// Read returns the current field sample.
func (d *Device) Read() (Sample, error) {
	buf := make([]byte, 6)
	if err := d.dev.ReadReg(regOutXL|autoIncrement, buf); err != nil {
		return Sample{}, fmt.Errorf("lis3mdl: axis read failed: %w", err)
	}
	le := binary.LittleEndian
	x := int16(le.Uint16(buf[0:2]))
	y := int16(le.Uint16(buf[2:4]))
	z := int16(le.Uint16(buf[4:6]))

	tbuf := make([]byte, 2)
	if err := d.dev.ReadReg(regTempOutL|autoIncrement, tbuf); err != nil {
		return Sample{}, fmt.Errorf("lis3mdl: temp read failed: %w", err)
	}
	traw := int16(le.Uint16(tbuf))

	return Sample{
		X:     float64(x) / lsbPerGauss,
		Y:     float64(y) / lsbPerGauss,
		Z:     float64(z) / lsbPerGauss,
		TempC: tempZeroC + float64(traw)/lsbPerDegC,
	}, nil
}
