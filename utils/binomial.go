// PTRA: Patient Trajectory Analysis Library
// Copyright (c) 2022 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/ptra/blob/master/LICENSE.txt>.
package utils

import (
	"fmt"

	"gonum.org/v1/gonum/mathext"
)

// BinomialUpperTail returns P(X >= k) for X ~ Binomial(n, p), computed as the regularized incomplete beta
// function I_p(k, n-k+1).
func BinomialUpperTail(p float64, n, k int) (float64, error) {
	if n < 0 {
		return 0, fmt.Errorf("binomial: negative number of trials %d", n)
	}
	if p < 0 || p > 1 {
		return 0, fmt.Errorf("binomial: probability must be in [0, 1], got %v", p)
	}
	if k <= 0 {
		return 1.0, nil
	}
	if k > n {
		return 0.0, nil
	}
	return mathext.RegIncBeta(float64(k), float64(1+(n-k)), p), nil
}
