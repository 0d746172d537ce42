package types

// StringList is a jsonb-serialized list of strings (available sizes,
// colors) on catalog rows.
type StringList []string

// Contains reports whether the list holds the given value.
func (s StringList) Contains(value string) bool {
	for _, entry := range s {
		if entry == value {
			return true
		}
	}
	return false
}
