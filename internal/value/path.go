package value

import "strconv"

// NotFound is returned (as ok=false) when GetPath cannot resolve a segment:
// the parent isn't a container, an object key is missing, or an array index
// is out of range.
func GetPath(root Value, path string) (Value, bool) {
	if path == "" {
		return root, true
	}
	current := root
	for _, segment := range splitPath(path) {
		switch container := current.(type) {
		case map[string]any:
			v, ok := container[segment]
			if !ok {
				return nil, false
			}
			current = v
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(container) {
				return nil, false
			}
			current = container[idx]
		default:
			return nil, false
		}
	}
	return current, true
}

func splitPath(path string) []string {
	var segments []string
	start := 0
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			segments = append(segments, path[start:i])
			start = i + 1
		}
	}
	segments = append(segments, path[start:])
	return segments
}
