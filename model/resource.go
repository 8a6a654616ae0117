package model

import "math"

// Resource kinds every process must declare.
const (
	Memory = "MEM"
	CPU    = "CPU"
)

// Epsilon is the tolerance used when comparing resource quantities.
const Epsilon = 1e-9

// Requirements maps a resource kind to the quantity a process needs.
type Requirements map[string]float64

// Memory returns the declared memory requirement and whether it is present.
func (r Requirements) Memory() (float64, bool) {
	v, ok := r[Memory]
	return v, ok
}

// CPU returns the declared CPU requirement and whether it is present.
func (r Requirements) CPU() (float64, bool) {
	v, ok := r[CPU]
	return v, ok
}

// Admissible reports whether both required kinds are declared.
func (r Requirements) Admissible() bool {
	_, hasMem := r[Memory]
	_, hasCPU := r[CPU]
	return hasMem && hasCPU
}

// Usage converts the requirements to a usage scaled by multiplier.
func (r Requirements) Usage(multiplier float64) Usage {
	return Usage{Memory: r[Memory] * multiplier, CPU: r[CPU] * multiplier}
}

// Clone returns a copy of the requirements.
func (r Requirements) Clone() Requirements {
	if r == nil {
		return nil
	}
	ret := make(Requirements, len(r))
	for k, v := range r {
		ret[k] = v
	}
	return ret
}

// Usage represents memory and CPU consumption (or capacity).
type Usage struct {
	Memory float64 `json:"memory" yaml:"memory"`
	CPU    float64 `json:"cpu" yaml:"cpu"`
}

// Add returns u + other.
func (u Usage) Add(other Usage) Usage {
	return Usage{Memory: u.Memory + other.Memory, CPU: u.CPU + other.CPU}
}

// Subtract returns u - other; negative components are clamped to zero.
func (u Usage) Subtract(other Usage) Usage {
	return Usage{Memory: clamp(u.Memory - other.Memory), CPU: clamp(u.CPU - other.CPU)}
}

// LessThanOrEqual reports whether both components of u fit into other.
func (u Usage) LessThanOrEqual(other Usage) bool {
	return LessThanOrEqual(u.Memory, other.Memory) && LessThanOrEqual(u.CPU, other.CPU)
}

// IsZero reports whether nothing is consumed.
func (u Usage) IsZero() bool {
	return math.Abs(u.Memory) < Epsilon && math.Abs(u.CPU) < Epsilon
}

// LessThanOrEqual compares two quantities with Epsilon tolerance.
func LessThanOrEqual(f1, f2 float64) bool {
	v := f1 - f2
	if math.Abs(v) < Epsilon {
		return true
	}
	return v < 0
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
