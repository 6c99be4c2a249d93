package normalize

import "strings"

// NilIfBlank returns nil for nil or whitespace-only input, else the trimmed value.
func NilIfBlank(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns the trimmed value of v, or "".
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// ContainsFold reports whether substr is within s, ignoring case.
func ContainsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}
