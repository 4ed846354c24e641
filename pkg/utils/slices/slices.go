package slices

// Filter creates new slice which contains only items satisfying
// the predicate, in the original order.
func Filter[T any](vs []T, predicator func(T) bool) []T {
	filtered := []T{}
	for _, v := range vs {
		if predicator(v) {
			filtered = append(filtered, v)
		}
	}
	return filtered
}

// Contains reports whether item appears in sli.
func Contains[T comparable](sli []T, item T) bool {
	for _, v := range sli {
		if v == item {
			return true
		}
	}
	return false
}
