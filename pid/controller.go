package pid

import (
	"fmt"

	"pico-gimbal/utils"
)

// Gains configures one positional PID stage.
type Gains struct {
	Kp      float64 `yaml:"kp"`
	Ki      float64 `yaml:"ki"`
	Kd      float64 `yaml:"kd"`
	MaxOut  float64 `yaml:"max_out"`
	MaxIOut float64 `yaml:"max_iout"`
}

func (g Gains) Validate() error {
	if g.MaxOut < 0 {
		return fmt.Errorf("invalid max out: %f", g.MaxOut)
	}
	if g.MaxIOut < 0 {
		return fmt.Errorf("invalid max integral out: %f", g.MaxIOut)
	}
	return nil
}

// Controller is a positional PID: the integral term accumulates Ki*e per call
// and is clamped on its own before the output is saturated.
type Controller struct {
	Gains
	limitOut  func(float64) float64
	limitIOut func(float64) float64

	err  [2]float64 // current, previous
	pOut float64
	iOut float64
	dOut float64
	out  float64
}

func New(g Gains) *Controller {
	c := &Controller{}
	c.SetGains(g)
	return c
}

// SetGains swaps the tuning and keeps the accumulated state.
func (c *Controller) SetGains(g Gains) {
	c.Gains = g
	c.limitOut = utils.Limit(-g.MaxOut, g.MaxOut)
	c.limitIOut = utils.Limit(-g.MaxIOut, g.MaxIOut)
	c.iOut = c.limitIOut(c.iOut)
}

// Calc runs one step for the measured value fdb against the setpoint set.
func (c *Controller) Calc(fdb, set float64) float64 {
	c.err[1] = c.err[0]
	c.err[0] = set - fdb

	c.pOut = c.Kp * c.err[0]
	c.iOut = c.limitIOut(c.iOut + c.Ki*c.err[0])
	c.dOut = c.Kd * (c.err[0] - c.err[1])
	c.out = c.limitOut(c.pOut + c.iOut + c.dOut)
	return c.out
}

func (c *Controller) Reset() {
	c.err = [2]float64{}
	c.pOut, c.iOut, c.dOut, c.out = 0, 0, 0, 0
}

func (c *Controller) Out() float64      { return c.out }
func (c *Controller) Integral() float64 { return c.iOut }
func (c *Controller) Error() float64    { return c.err[0] }
