package schema

import "github.com/positive-tech/fpta/pkg/fptaerr"

// ValidateName checks a symbolic name against spec §9 "Symbolic names":
// letters, digits, underscore, or dot; must start with a letter;
// length 1-64. Case is preserved by the caller; matching is
// case-insensitive via HashName's upper-casing.
func ValidateName(name string) error {
	if len(name) < 1 || len(name) > 64 {
		return fptaerr.New(fptaerr.EName, "name %q length out of range [1,64]", name)
	}
	if !isLetter(name[0]) {
		return fptaerr.New(fptaerr.EName, "name %q must start with a letter", name)
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if isLetter(c) || isDigit(c) || c == '_' || c == '.' {
			continue
		}
		return fptaerr.New(fptaerr.EName, "name %q contains invalid character %q", name, c)
	}
	return nil
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
