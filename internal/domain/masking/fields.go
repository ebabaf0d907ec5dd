package masking

import (
	"strings"
	"unicode"
)

const (
	phonePrefix   = 4
	phoneSuffix   = 3
	minPhoneChars = phonePrefix + phoneSuffix
	emailVisible  = 2
	accountSuffix = 4
)

// MaskPhone hides the middle digits of a phone number, keeping its length
func MaskPhone(value string, level Level) string {
	if level == LevelFull {
		return value
	}
	if level != LevelPartial || value == Placeholder {
		return Placeholder
	}

	runes := []rune(strings.TrimSpace(value))
	maskable := 0
	for _, r := range runes {
		switch {
		case unicode.IsDigit(r), r == '*':
			maskable++
		case r == '+', r == ' ', r == '-', r == '(', r == ')':
		default:
			return Placeholder
		}
	}
	if maskable < minPhoneChars || len(runes) < minPhoneChars {
		return Placeholder
	}

	out := make([]rune, len(runes))
	for i, r := range runes {
		if i >= phonePrefix && i < len(runes)-phoneSuffix && unicode.IsDigit(r) {
			out[i] = '*'
			continue
		}
		out[i] = r
	}
	return string(out)
}

// MaskEmail keeps the first characters of the local part and the domain
func MaskEmail(value string, level Level) string {
	if level == LevelFull {
		return value
	}
	if level != LevelPartial || value == Placeholder {
		return Placeholder
	}

	local, domain, ok := strings.Cut(strings.TrimSpace(value), "@")
	if !ok || local == "" || domain == "" || strings.Contains(domain, "@") || !strings.Contains(domain, ".") {
		return Placeholder
	}

	runes := []rune(local)
	visible := emailVisible
	if len(runes) <= emailVisible {
		visible = len(runes) - 1
	}
	return string(runes[:visible]) + strings.Repeat("*", len(runes)-visible) + "@" + domain
}

// MaskName keeps the initial of every word
func MaskName(value string, level Level) string {
	if level == LevelFull {
		return value
	}
	if level != LevelPartial || value == Placeholder {
		return Placeholder
	}

	words := strings.Fields(value)
	if len(words) == 0 {
		return Placeholder
	}
	for i, w := range words {
		runes := []rune(w)
		words[i] = string(runes[0]) + strings.Repeat("*", len(runes)-1)
	}
	return strings.Join(words, " ")
}

// MaskAccount keeps the last digits of a bank account number
func MaskAccount(value string, level Level) string {
	if level == LevelFull {
		return value
	}
	if level != LevelPartial || value == Placeholder {
		return Placeholder
	}

	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= accountSuffix {
		return Placeholder
	}
	for _, r := range runes {
		if !unicode.IsDigit(r) && r != '*' {
			return Placeholder
		}
	}
	return strings.Repeat("*", len(runes)-accountSuffix) + string(runes[len(runes)-accountSuffix:])
}

// MaskNationalID never reveals anything below full access
func MaskNationalID(value string, level Level) string {
	if level == LevelFull {
		return value
	}
	return Placeholder
}
