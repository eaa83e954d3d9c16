package crud

// isSafeIdentifier tells whether name can be put into SQL text as a table or
// column name. A name starts with a letter or underscore followed by letters,
// digits or underscores. Dots, spaces, quotes and anything else are rejected.
func isSafeIdentifier(name string) bool {
	if name == "" || len(name) > 64 {
		return false
	}
	for i := 0; i < len(name); i++ {
		ch := name[i]
		letter := (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
		if i == 0 && !letter {
			return false
		}
		if !letter && !(ch >= '0' && ch <= '9') {
			return false
		}
	}
	return true
}
