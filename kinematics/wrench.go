package kinematics

import "github.com/golang/geo/r3"

// Wrench is a force/moment pair. The frame it is expressed in depends on
// context: force sensors report in the sensor frame, the distributor works in
// world coordinates.
type Wrench struct {
	Force  r3.Vector
	Torque r3.Vector
}

// Add returns the sum of two wrenches expressed in the same frame.
func (w Wrench) Add(o Wrench) Wrench {
	return Wrench{Force: w.Force.Add(o.Force), Torque: w.Torque.Add(o.Torque)}
}
