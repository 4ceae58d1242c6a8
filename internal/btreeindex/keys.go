package btreeindex

import "fmt"

// compareKeys orders two B-tree keys. A key is either a scalar
// (string/float64/bool — the JSON-native forms a decoded node produces)
// or a []any tuple for a composite key, compared lexicographically
// component by component (spec §4.6).
func compareKeys(a, b any) int {
	at, aIsTuple := a.([]any)
	bt, bIsTuple := b.([]any)
	if aIsTuple || bIsTuple {
		if !aIsTuple || !bIsTuple {
			panic("btreeindex: cannot compare tuple key with scalar key")
		}
		for i := 0; i < len(at) && i < len(bt); i++ {
			if c := compareScalars(at[i], bt[i]); c != 0 {
				return c
			}
		}
		return len(at) - len(bt)
	}
	return compareScalars(a, b)
}

func compareScalars(a, b any) int {
	switch av := a.(type) {
	case float64:
		bv := toFloat64(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			panic(fmt.Sprintf("btreeindex: cannot compare string key with %T", b))
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			panic(fmt.Sprintf("btreeindex: cannot compare bool key with %T", b))
		}
		if av == bv {
			return 0
		}
		if !av && bv {
			return -1
		}
		return 1
	default:
		panic(fmt.Sprintf("btreeindex: unsupported key type %T", a))
	}
}

func toFloat64(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		panic(fmt.Sprintf("btreeindex: cannot compare numeric key with %T", v))
	}
}
