package main

import (
	"math"
	"strconv"
)

// str2int64 parses s as a base-10 int64, requiring the entire string to be
// consumed. A partial parse (trailing garbage) is a failure, matching
// strtoll's endptr check.
func str2int64(s []byte) (int64, bool) {
	v, err := strconv.ParseInt(string(s), 10, 64)
	return v, err == nil
}

// str2dbl parses s as a float64, requiring the entire string to be
// consumed and the result to be a real number.
//
// strtod's endptr check alone accepts "nan" as a fully-consumed parse;
// the original server's equivalent check inverted the isnan guard and
// so rejected every well-formed number while accepting the literal NaN
// strings. This requires !IsNaN, the fix for that inversion.
func str2dbl(s []byte) (float64, bool) {
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return 0, false
	}
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}
