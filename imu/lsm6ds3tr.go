//go:build tinygo

package imu

import (
	"math"

	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/lsm6ds3tr"
)

const (
	microGToMS2    = 9.80665e-6
	microDPSToRadS = math.Pi / 180e6
)

// LSM reads an LSM6DS3TR over I2C.
type LSM struct {
	dev *lsm6ds3tr.Device
}

func NewLSM(bus drivers.I2C) (*LSM, error) {
	dev := lsm6ds3tr.New(bus)
	err := dev.Configure(lsm6ds3tr.Configuration{
		AccelRange:      lsm6ds3tr.ACCEL_8G,
		AccelSampleRate: lsm6ds3tr.ACCEL_SR_104,
		GyroRange:       lsm6ds3tr.GYRO_1000DPS,
		GyroSampleRate:  lsm6ds3tr.GYRO_SR_104,
	})
	if err != nil {
		return nil, errors.Wrap(err, "configure lsm6ds3tr")
	}
	if !dev.Connected() {
		return nil, errors.New("lsm6ds3tr not connected")
	}
	return &LSM{dev: dev}, nil
}

func (l *LSM) Read() (accel, gyro Vec3, err error) {
	ax, ay, az, err := l.dev.ReadAcceleration()
	if err != nil {
		return accel, gyro, errors.Wrap(err, "read acceleration")
	}
	gx, gy, gz, err := l.dev.ReadRotation()
	if err != nil {
		return accel, gyro, errors.Wrap(err, "read rotation")
	}
	accel = Vec3{float64(ax) * microGToMS2, float64(ay) * microGToMS2, float64(az) * microGToMS2}
	gyro = Vec3{float64(gx) * microDPSToRadS, float64(gy) * microDPSToRadS, float64(gz) * microDPSToRadS}
	return accel, gyro, nil
}
