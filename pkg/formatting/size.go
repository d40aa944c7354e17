// Package formatting provides human-readable rendering of sizes and
// tolerant decoding of model-produced JSON.
package formatting

import (
	"math"
	"strconv"
)

var units = []string{"B", "KB", "MB", "GB", "TB"}

// Size renders a byte count with base-1024 units. Whole units print
// without decimals; anything else prints with one.
func Size(n int) string {
	if n <= 0 {
		return "0 B"
	}

	f := float64(n)
	i := min(int(math.Floor(math.Log(f)/math.Log(1024))), len(units)-1)
	size := f / math.Pow(1024, float64(i))

	precision := 1
	if i == 0 || size == math.Trunc(size) {
		precision = 0
	}
	return strconv.FormatFloat(size, 'f', precision, 64) + " " + units[i]
}
