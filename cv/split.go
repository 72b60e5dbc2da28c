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

// Package cv evaluates classifiers on svmlight datasets with k-fold and randomized shuffle-split cross-validation.
package cv

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/valyala/fastrand"
)

// ErrInvalidConfig is wrapped by all configuration errors of the harness.
var ErrInvalidConfig = errors.New("invalid cross-validation configuration")

// DefaultSeed is the seed of the randomized splits when none is configured.
const DefaultSeed = 545510477

// Split is one train/test partition of sample positions. Both sets are sorted ascending.
type Split struct {
	Train []int
	Test  []int
}

// KFold partitions 0..n-1 into k contiguous folds. The first n%k folds hold n/k+1 samples, the others n/k. Fold i is
// the test set of split i; all other samples train.
func KFold(n, k int) ([]Split, error) {
	if k <= 1 {
		return nil, fmt.Errorf("%w: k must be at least 2, got %d", ErrInvalidConfig, k)
	}
	if k > n {
		return nil, fmt.Errorf("%w: k=%d exceeds the number of samples %d", ErrInvalidConfig, k, n)
	}
	splits := make([]Split, k)
	start := 0
	for i := range splits {
		size := n / k
		if i < n%k {
			size++
		}
		end := start + size
		test := make([]int, 0, size)
		train := make([]int, 0, n-size)
		for j := 0; j < n; j++ {
			if j >= start && j < end {
				test = append(test, j)
			} else {
				train = append(train, j)
			}
		}
		splits[i] = Split{Train: train, Test: test}
		start = end
	}
	return splits, nil
}

func permutation(rng *fastrand.RNG, n int) []int {
	perm := make([]int, n)
	for i := range perm {
		perm[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := int(rng.Uint32n(uint32(i + 1)))
		perm[i], perm[j] = perm[j], perm[i]
	}
	return perm
}

// ShuffleSplit draws iter independent permutations of 0..n-1 from a generator seeded with seed. Each permutation
// contributes ceil(testFraction*n) test samples; the remaining samples train. The same seed yields the same splits.
func ShuffleSplit(n, iter int, testFraction float64, seed uint32) ([]Split, error) {
	if iter <= 1 {
		return nil, fmt.Errorf("%w: number of iterations must be at least 2, got %d", ErrInvalidConfig, iter)
	}
	if !(testFraction > 0 && testFraction < 1) {
		return nil, fmt.Errorf("%w: test fraction must be in (0, 1), got %v", ErrInvalidConfig, testFraction)
	}
	if seed == 0 {
		return nil, fmt.Errorf("%w: seed must not be 0", ErrInvalidConfig)
	}
	testSize := int(math.Ceil(testFraction * float64(n)))
	if n < 2 || testSize >= n {
		return nil, fmt.Errorf("%w: %d samples cannot be split with test fraction %v", ErrInvalidConfig, n, testFraction)
	}
	var rng fastrand.RNG
	rng.Seed(seed)
	splits := make([]Split, iter)
	for i := range splits {
		perm := permutation(&rng, n)
		test := append([]int(nil), perm[:testSize]...)
		train := append([]int(nil), perm[testSize:]...)
		sort.Ints(test)
		sort.Ints(train)
		splits[i] = Split{Train: train, Test: test}
	}
	return splits, nil
}
