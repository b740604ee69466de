package slice

import "strings"

// ExcludeWhitespaces trims every value and drops the ones left empty
func ExcludeWhitespaces(arr []string) []string {
	result := make([]string, 0, len(arr))
	for _, h := range arr {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		result = append(result, h)
	}
	return result
}
