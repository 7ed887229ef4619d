package fn

// Map transforms every element of items through f.
func Map[T, U any](items []T, f func(T) U) []U {
	mapped := make([]U, len(items))
	for i := range items {
		mapped[i] = f(items[i])
	}
	return mapped
}

// Filter keeps the elements for which pred holds, preserving order.
func Filter[T any](items []T, pred func(T) bool) []T {
	var kept []T
	for _, item := range items {
		if pred(item) {
			kept = append(kept, item)
		}
	}
	return kept
}

// FilterMap transforms and filters in one pass; elements where f reports
// false are dropped.
func FilterMap[T, U any](items []T, f func(T) (U, bool)) []U {
	var kept []U
	for _, item := range items {
		if mapped, keep := f(item); keep {
			kept = append(kept, mapped)
		}
	}
	return kept
}

// GroupBy buckets items by the key f derives for each.
func GroupBy[T any, K comparable](items []T, key func(T) K) map[K][]T {
	groups := make(map[K][]T)
	for _, item := range items {
		k := key(item)
		groups[k] = append(groups[k], item)
	}
	return groups
}
