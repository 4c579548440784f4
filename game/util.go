package game

// modInt returns the positive modulo (Go's % can return negative).
func modInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}
