package stage

import (
	"errors"
	"fmt"

	"github.com/tantelu/CSinGAN"
	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anyvec/anyvecsave"
	"github.com/unixpickle/essentials"
	"github.com/unixpickle/serializer"
)

var errVarsGradMismatch = errors.New("variable list does not match gradients")

// MarshalBinary encodes the iteration count and moment
// estimates of the optimizer.
func (a *Adam) MarshalBinary() ([]byte, error) {
	slice := []serializer.Serializer{
		serializer.Float64(a.iteration),
		serializer.Int(len(a.Params)),
	}
	for _, moment := range []anydiff.Grad{a.firstMoment, a.secondMoment} {
		vecs, err := marshalGradient(a.Params, moment)
		if err != nil {
			return nil, essentials.AddCtx("marshal Adam", err)
		}
		slice = append(slice, serializer.Int(len(vecs)))
		slice = append(slice, vecs...)
	}
	return serializer.SerializeSlice(slice)
}

// UnmarshalBinary loads state produced by MarshalBinary
// on an optimizer with parameters of the same shapes.
//
// The optimizer is only modified if the whole state is
// valid.
func (a *Adam) UnmarshalBinary(d []byte) error {
	slice, err := serializer.DeserializeSlice(d)
	if err != nil {
		return essentials.AddCtx("unmarshal Adam", err)
	}
	if len(slice) < 2 {
		return fmt.Errorf("unmarshal Adam: %w: truncated state", singan.ErrShapeMismatch)
	}
	iter, ok1 := slice[0].(serializer.Float64)
	count, ok2 := slice[1].(serializer.Int)
	if !ok1 || !ok2 {
		return errors.New("unmarshal Adam: bad header")
	}
	if int(count) != len(a.Params) {
		return fmt.Errorf("unmarshal Adam: %w: %d parameters stored, %d expected",
			singan.ErrShapeMismatch, count, len(a.Params))
	}
	rest := slice[2:]
	var moments [2]anydiff.Grad
	for i := range moments {
		if len(rest) == 0 {
			return fmt.Errorf("unmarshal Adam: %w: truncated state", singan.ErrShapeMismatch)
		}
		n, ok := rest[0].(serializer.Int)
		if !ok || int(n) > len(rest)-1 {
			return fmt.Errorf("unmarshal Adam: %w: truncated state", singan.ErrShapeMismatch)
		}
		moments[i], err = unmarshalGradient(a.Params, rest[1:1+int(n)])
		if err != nil {
			return fmt.Errorf("unmarshal Adam: %w", err)
		}
		rest = rest[1+int(n):]
	}
	a.iteration = float64(iter)
	a.firstMoment = moments[0]
	a.secondMoment = moments[1]
	return nil
}

func marshalGradient(vars []*anydiff.Var, grad anydiff.Grad) ([]serializer.Serializer, error) {
	if grad == nil {
		return nil, nil
	}
	if len(vars) != len(grad) {
		return nil, errVarsGradMismatch
	}
	var res []serializer.Serializer
	for _, v := range vars {
		vec, ok := grad[v]
		if !ok {
			return nil, errVarsGradMismatch
		}
		res = append(res, &anyvecsave.S{Vector: vec})
	}
	return res, nil
}

func unmarshalGradient(vars []*anydiff.Var, objs []serializer.Serializer) (anydiff.Grad, error) {
	if len(objs) == 0 {
		return nil, nil
	}
	if len(objs) != len(vars) {
		return nil, fmt.Errorf("%w: %d moment vectors for %d parameters",
			singan.ErrShapeMismatch, len(objs), len(vars))
	}
	res := anydiff.Grad{}
	for i, v := range vars {
		s, ok := objs[i].(*anyvecsave.S)
		if !ok {
			return nil, fmt.Errorf("unexpected moment entry %T", objs[i])
		}
		if s.Vector.Len() != v.Vector.Len() {
			return nil, fmt.Errorf("%w: bad vector length", singan.ErrShapeMismatch)
		}
		c := v.Vector.Creator()
		res[v] = c.MakeVectorData(c.MakeNumericList(singan.VectorFloats(s.Vector)))
	}
	return res, nil
}
