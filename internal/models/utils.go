package models

// Float64Ptr returns a pointer to the given float64.
// Useful for filling optional score fields from literals.
func Float64Ptr(f float64) *float64 {
	return &f
}
