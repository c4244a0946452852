package stage

import (
	"math"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec"
)

const adamDefaultDamping = 1e-8

// Adam implements the adaptive moments optimizer
// described in https://arxiv.org/pdf/1412.6980.pdf for a
// fixed list of parameters.
type Adam struct {
	// Params are the variables updated by Step.
	Params []*anydiff.Var

	// These are decay rates for the first and second
	// moments of the gradient.
	DecayRate1, DecayRate2 float64

	// Damping is used to prevent divisions by zero.
	// If it is 0, a default is used.
	Damping float64

	firstMoment  anydiff.Grad
	secondMoment anydiff.Grad
	iteration    float64
}

// NewAdam creates an Adam optimizer for some parameters.
func NewAdam(params []*anydiff.Var, beta1, beta2 float64) *Adam {
	return &Adam{
		Params:     params,
		DecayRate1: beta1,
		DecayRate2: beta2,
	}
}

// Iteration returns the number of steps taken so far.
func (a *Adam) Iteration() int {
	return int(a.iteration)
}

// Step transforms grad into an update direction and
// applies it to the parameters with learning rate lr.
//
// The gradient must contain exactly a.Params.
// It is overwritten by the step.
func (a *Adam) Step(grad anydiff.Grad, lr float64) {
	a.updateMoments(grad)

	a.iteration++
	scalingFactor := -lr * math.Sqrt(1-math.Pow(a.DecayRate2, a.iteration)) /
		(1 - math.Pow(a.DecayRate1, a.iteration))
	damping := a.damping()
	for variable, vec := range grad {
		vec.Set(a.firstMoment[variable])
		vec.Scale(vec.Creator().MakeNumeric(scalingFactor))

		divisor := a.secondMoment[variable].Copy()
		divisor.AddScalar(divisor.Creator().MakeNumeric(damping))
		anyvec.Pow(divisor, divisor.Creator().MakeNumeric(0.5))
		vec.Div(divisor)
	}
	grad.AddToVars()
}

func (a *Adam) updateMoments(grad anydiff.Grad) {
	if a.firstMoment == nil {
		a.firstMoment = copyGrad(grad)
		scaleGrad(a.firstMoment, 1-a.DecayRate1)
	} else {
		scaleGrad(a.firstMoment, a.DecayRate1)
		for variable, vec := range grad {
			v := vec.Copy()
			v.Scale(vec.Creator().MakeNumeric(1 - a.DecayRate1))
			a.firstMoment[variable].Add(v)
		}
	}

	if a.secondMoment == nil {
		a.secondMoment = copyGrad(grad)
		for _, v := range a.secondMoment {
			anyvec.Pow(v, v.Creator().MakeNumeric(2))
		}
		scaleGrad(a.secondMoment, 1-a.DecayRate2)
	} else {
		scaleGrad(a.secondMoment, a.DecayRate2)
		for variable, vec := range grad {
			v := vec.Copy()
			anyvec.Pow(v, v.Creator().MakeNumeric(2))
			v.Scale(v.Creator().MakeNumeric(1 - a.DecayRate2))
			a.secondMoment[variable].Add(v)
		}
	}
}

func (a *Adam) damping() float64 {
	if a.Damping != 0 {
		return a.Damping
	}
	return adamDefaultDamping
}

func copyGrad(g anydiff.Grad) anydiff.Grad {
	res := anydiff.Grad{}
	for v, vec := range g {
		res[v] = vec.Copy()
	}
	return res
}

func scaleGrad(g anydiff.Grad, s float64) {
	for _, vec := range g {
		vec.Scale(vec.Creator().MakeNumeric(s))
	}
}
