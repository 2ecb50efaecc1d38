package environment

import "gonum.org/v1/gonum/mat"

func vec(data ...float64) mat.Vector {
	return mat.NewVecDense(len(data), data)
}
