package core

import (
	"reflect"

	"github.com/encodeous/rpl/state"
)

func absDiff(a, b state.PathMetric) state.PathMetric {
	if a > b {
		return a - b
	}
	return b - a
}

func clampMetric(m state.PathMetric) uint16 {
	return uint16(min(m, state.PathMetric(^uint16(0))))
}

func moduleName[T state.Module]() string {
	return reflect.TypeFor[T]().String()
}

func Get[T state.Module](s *state.State) T {
	return s.Modules[moduleName[T]()].(T)
}
