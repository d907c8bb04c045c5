package environment

import (
	"gonum.org/v1/gonum/mat"
)

// newObservation copies obs into a vector. gonum panics on malformed
// dimensions; that panic is returned as its mat.Error.
func newObservation(obs []float32) (v *mat.VecDense, err error) {
	defer func() {
		if r := recover(); r != nil {
			merr, ok := r.(mat.Error)
			if !ok {
				panic(r)
			}
			v, err = nil, merr
		}
	}()

	data := make([]float64, len(obs))
	for i, x := range obs {
		data[i] = float64(x)
	}
	return mat.NewVecDense(len(data), data), nil
}
