package server

import (
	"fmt"
	"strconv"
)

// parseBBox reads "minx,miny,maxx,maxy" from a raw query argument without
// allocating intermediate strings. Hot path of the bbox endpoint.
func parseBBox(data []byte) ([4]float64, error) {
	var out [4]float64
	i := 0
	n := len(data)

	for j := 0; j < 4; j++ {
		// Skip whitespace
		for i < n && (data[i] == ' ' || data[i] == '\t') {
			i++
		}

		start := i
		for i < n && ((data[i] >= '0' && data[i] <= '9') ||
			data[i] == '-' || data[i] == '+' || data[i] == '.' ||
			data[i] == 'e' || data[i] == 'E') {
			i++
		}
		if start == i {
			return out, fmt.Errorf("expected number at position %d", start)
		}
		num, err := strconv.ParseFloat(string(data[start:i]), 64)
		if err != nil {
			return out, fmt.Errorf("invalid number: %v", err)
		}
		out[j] = num

		// Skip whitespace before the separator
		for i < n && (data[i] == ' ' || data[i] == '\t') {
			i++
		}
		if j < 3 {
			if i >= n || data[i] != ',' {
				return out, fmt.Errorf("expected ',' at position %d", i)
			}
			i++
		}
	}

	if i != n {
		return out, fmt.Errorf("trailing data at position %d", i)
	}
	if out[0] >= out[2] || out[1] >= out[3] {
		return out, fmt.Errorf("min must be smaller than max")
	}
	return out, nil
}
