package command

// Phone-number comparison for SMS sender verification. Numbers arrive in
// mixed formats (+91 98765..., 098765..., bare national digits), so the
// match is on trailing digits, the same loose rule the platform dialer uses.

const minSuffixDigits = 7

// SameNumber reports whether a and b plausibly name the same phone line,
// ignoring formatting and country-code prefixes. Numbers shorter than seven
// digits must match exactly.
func SameNumber(a, b string) bool {
	da, db := digits(a), digits(b)
	if da == "" || db == "" {
		return false
	}
	n := len(da)
	if len(db) < n {
		n = len(db)
	}
	if n < minSuffixDigits {
		return da == db
	}
	return da[len(da)-n:] == db[len(db)-n:]
}

func digits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
