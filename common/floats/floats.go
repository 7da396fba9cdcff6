// Copyright 2025 cinematch Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package floats

// Zero fills a vector of 32-bit floats with zeros.
func Zero(a []float32) {
	for i := range a {
		a[i] = 0
	}
}

// MatZero fills zeros in a matrix of 32-bit floats.
func MatZero(x [][]float32) {
	for i := range x {
		for j := range x[i] {
			x[i][j] = 0
		}
	}
}

// Dot computes the dot product of two vectors.
func Dot(a, b []float32) (ret float32) {
	for i := range a {
		ret += a[i] * b[i]
	}
	return
}

// Add dst by s in place.
func Add(dst, s []float32) {
	for i := range dst {
		dst[i] += s[i]
	}
}

// Sub dst by s in place.
func Sub(dst, s []float32) {
	for i := range dst {
		dst[i] -= s[i]
	}
}

// SubTo computes c = a - b.
func SubTo(a, b, c []float32) {
	for i := range a {
		c[i] = a[i] - b[i]
	}
}

// MulConst multiplies a vector by a constant in place.
func MulConst(dst []float32, c float32) {
	for i := range dst {
		dst[i] *= c
	}
}

// MulConstTo computes c = a * b.
func MulConstTo(a []float32, b float32, c []float32) {
	for i := range a {
		c[i] = a[i] * b
	}
}

// MulConstAdd computes dst += a * c.
func MulConstAdd(a []float32, c float32, dst []float32) {
	for i := range a {
		dst[i] += a[i] * c
	}
}
