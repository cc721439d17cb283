package variant

// Variant is a host dynamic value crossing the guest boundary. Supported
// shapes are nil, bool, int64, float64, string, Vector2, Vector3, Color,
// Dict, []Variant and the packed array slices ([]byte, []int32, []int64,
// []float32, []float64, []Vector2, []Vector3, []Color, []string).
type Variant = any

// Vector2 is a 2D vector with 32-bit float components.
type Vector2 struct {
	X, Y float32
}

// Vector3 is a 3D vector with 32-bit float components.
type Vector3 struct {
	X, Y, Z float32
}

// Color is an RGBA color with 32-bit float components.
type Color struct {
	R, G, B, A float32
}

// Dict is an associative map of host values keyed by string.
type Dict map[string]Variant

// Array is a heterogeneous sequence of host values.
type Array []Variant
