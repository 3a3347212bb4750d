package store

import (
	"sort"
	"strings"
)

// ApplyQuery runs q over the direct children of a map value. Backends that
// cannot push the query down use it after reading the parent.
func ApplyQuery(parent any, q Query) ([]Child, error) {
	m, ok := parent.(map[string]any)
	if !ok {
		return nil, nil
	}
	var equal any
	if q.EqualTo != nil {
		v, err := Encode(q.EqualTo)
		if err != nil {
			return nil, err
		}
		equal = v
	}
	children := make([]Child, 0, len(m))
	for k, v := range m {
		if q.EqualTo != nil {
			if compareValues(orderValue(v, q.OrderByChild), equal) != 0 {
				continue
			}
		}
		children = append(children, Child{Key: k, Value: deepCopy(v)})
	}
	sort.SliceStable(children, func(i, j int) bool {
		c := compareValues(orderValue(children[i].Value, q.OrderByChild), orderValue(children[j].Value, q.OrderByChild))
		if c != 0 {
			return c < 0
		}
		return children[i].Key < children[j].Key
	})
	if q.LimitToLast > 0 && len(children) > q.LimitToLast {
		children = children[len(children)-q.LimitToLast:]
	}
	return children, nil
}

func orderValue(v any, child string) any {
	if child == "" {
		return nil
	}
	segs := strings.Split(strings.Trim(child, "/"), "/")
	out, _ := getAt(v, segs)
	return out
}

// compareValues orders nil < false < true < numbers < strings < maps.
func compareValues(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case float64:
		bv := b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		return strings.Compare(av, b.(string))
	}
	return 0
}

func typeRank(v any) int {
	switch t := v.(type) {
	case nil:
		return 0
	case bool:
		if t {
			return 2
		}
		return 1
	case float64:
		return 3
	case string:
		return 4
	default:
		return 5
	}
}
