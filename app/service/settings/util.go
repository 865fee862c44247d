package settings

import "github.com/elliotchance/pie/v2"

func sortedKeys[V any](m map[string]V) []string {
	return pie.Sort(pie.Keys(m))
}
