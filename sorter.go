package extpoint

import (
	"cmp"
	"slices"
)

// Comparator orders two hooks. It returns a negative number when a sorts
// before b.
type Comparator func(a, b any) int

// OrderComparator puts PriorityOrdered hooks first, then orders by ascending
// Order value. Hooks that are not Ordered get LowestPrecedence.
func OrderComparator(a, b any) int {
	_, p1 := a.(PriorityOrdered)
	_, p2 := b.(PriorityOrdered)
	if p1 && !p2 {
		return -1
	}
	if p2 && !p1 {
		return 1
	}
	return cmp.Compare(OrderOf(a), OrderOf(b))
}

// OrderOf returns the hook's Order value or LowestPrecedence.
func OrderOf(hook any) int {
	if o, ok := hook.(Ordered); ok {
		return o.Order()
	}
	return LowestPrecedence
}

// comparatorFor returns the factory's dependency comparator if it has one.
func comparatorFor(factory ListableFactory) Comparator {
	if cp, ok := factory.(ComparatorProvider); ok {
		if c := cp.DependencyComparator(); c != nil {
			return c
		}
	}
	return OrderComparator
}

// SortProcessors sorts hooks in place. The sort is stable, so hooks that
// compare equal keep their discovery order.
func SortProcessors[T any](hooks []T, factory ListableFactory) {
	if len(hooks) <= 1 {
		return
	}
	compare := comparatorFor(factory)
	slices.SortStableFunc(hooks, func(a, b T) int {
		return compare(a, b)
	})
}

// named pairs a hook with the name it was discovered under.
type named[T any] struct {
	name string
	hook T
}

func sortNamed[T any](hooks []named[T], factory ListableFactory) {
	if len(hooks) <= 1 {
		return
	}
	compare := comparatorFor(factory)
	slices.SortStableFunc(hooks, func(a, b named[T]) int {
		return compare(a.hook, b.hook)
	})
}
