package imu

import (
	"math"
	"time"

	"pico-gimbal/gimbal"
	"pico-gimbal/utils"
)

const DefaultAlpha = 0.98

type Vec3 [3]float64

// Sensor is a 6-axis IMU: acceleration in m/s^2, rotation rate in rad/s.
type Sensor interface {
	Read() (accel, gyro Vec3, err error)
}

// IMU fuses gyro and accelerometer into a pitch and a yaw estimate. Pitch is
// a complementary filter against gravity; yaw is the integrated gyro rate.
type IMU struct {
	sensor Sensor
	now    func() time.Time
	alpha  float64
	bias   Vec3

	last    time.Time
	started bool
	accel   Vec3
	gyro    Vec3

	pitch, yaw         float64
	pitchRate, yawRate float64
}

func New(s Sensor, bias Vec3) *IMU {
	return &IMU{
		sensor: s,
		now:    time.Now,
		alpha:  DefaultAlpha,
		bias:   bias,
	}
}

func (m *IMU) SetClock(now func() time.Time) {
	m.now = now
}

func (m *IMU) SetAlpha(alpha float64) {
	m.alpha = utils.Clamp(alpha, 0, 1)
}

func (m *IMU) SetBias(bias Vec3) {
	m.bias = bias
}

// Calibrate averages n gyro readings of a resting sensor into the bias.
func (m *IMU) Calibrate(n int) (Vec3, error) {
	var sum Vec3
	for i := 0; i < n; i++ {
		_, g, err := m.sensor.Read()
		if err != nil {
			return m.bias, err
		}
		for k := range sum {
			sum[k] += g[k]
		}
	}
	if n > 0 {
		for k := range sum {
			sum[k] /= float64(n)
		}
		m.bias = sum
	}
	return m.bias, nil
}

func (m *IMU) Sample() error {
	accel, gyro, err := m.sensor.Read()
	if err != nil {
		return err
	}
	now := m.now()
	for k := range gyro {
		gyro[k] -= m.bias[k]
	}
	m.accel, m.gyro = accel, gyro
	m.pitchRate, m.yawRate = gyro[1], gyro[2]

	pitchAccel := math.Atan2(-accel[0], math.Sqrt(accel[1]*accel[1]+accel[2]*accel[2]))
	if !m.started {
		m.pitch = pitchAccel
		m.last = now
		m.started = true
		return nil
	}
	dt := now.Sub(m.last).Seconds()
	m.last = now
	m.pitch = m.alpha*(m.pitch+m.pitchRate*dt) + (1-m.alpha)*pitchAccel
	m.yaw = utils.ThetaFormat(m.yaw + m.yawRate*dt)
	return nil
}

func (m *IMU) InertialAngle(a gimbal.Axis) float64 {
	if a == gimbal.AxisYaw {
		return m.yaw
	}
	return m.pitch
}

func (m *IMU) InertialVelocity(a gimbal.Axis) float64 {
	if a == gimbal.AxisYaw {
		return m.yawRate
	}
	return m.pitchRate
}

// Raw returns the last bias-corrected reading.
func (m *IMU) Raw() (accel, gyro Vec3) {
	return m.accel, m.gyro
}
