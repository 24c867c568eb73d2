package gimbal

import "pico-gimbal/pid"

// Cascade is the position loop feeding the velocity loop of one axis.
type Cascade struct {
	Pos *pid.Controller
	Vel *pid.Controller
}

func NewCascade(pos, vel pid.Gains) *Cascade {
	return &Cascade{Pos: pid.New(pos), Vel: pid.New(vel)}
}

// Update returns the desired velocity from the position stage and the final
// command from the velocity stage.
func (c *Cascade) Update(pos, vel, refPos float64) (refVel, cmd float64) {
	refVel = c.Pos.Calc(pos, refPos)
	cmd = c.Vel.Calc(vel, refVel)
	return refVel, cmd
}

func (c *Cascade) Reset() {
	c.Pos.Reset()
	c.Vel.Reset()
}
