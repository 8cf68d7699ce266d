package model

// ValidateCPF checks an 11 digit Brazilian tax document (CPF) against its two
// mod-11 check digits. Punctuation is not accepted; callers strip it first.
func ValidateCPF(doc string) bool {
	if len(doc) != 11 {
		return false
	}

	digits := make([]int, 11)
	for i, r := range doc {
		if r < '0' || r > '9' {
			return false
		}
		digits[i] = int(r - '0')
	}

	allEqual := true
	for _, d := range digits[1:] {
		if d != digits[0] {
			allEqual = false
			break
		}
	}
	if allEqual {
		return false
	}

	return checkDigit(digits[:9]) == digits[9] && checkDigit(digits[:10]) == digits[10]
}

// checkDigit weights the digits from len+1 down to 2.
func checkDigit(digits []int) int {
	sum := 0
	weight := len(digits) + 1
	for _, d := range digits {
		sum += d * weight
		weight--
	}

	rest := (sum * 10) % 11
	if rest == 10 || rest == 11 {
		return 0
	}
	return rest
}

// OnlyDigits drops every non-digit rune, turning "529.982.247-25" into "52998224725".
func OnlyDigits(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			out = append(out, r)
		}
	}
	return string(out)
}
