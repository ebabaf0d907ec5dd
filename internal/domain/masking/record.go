package masking

import (
	"strings"

	"github.com/mwork/admin-console/internal/domain/rbac"
)

type fieldKind int

const (
	kindPhone fieldKind = iota + 1
	kindEmail
	kindName
	kindAccount
	kindNationalID
)

var sensitiveFields = map[string]fieldKind{
	"phone":        kindPhone,
	"phonenumber":  kindPhone,
	"mobile":       kindPhone,
	"msisdn":       kindPhone,
	"email":        kindEmail,
	"emailaddress": kindEmail,
	"name":         kindName,
	"fullname":     kindName,
	"firstname":    kindName,
	"lastname":     kindName,
	"accountname":  kindName,

	"bankaccount":   kindAccount,
	"accountnumber": kindAccount,
	"nuban":         kindAccount,
	"iban":          kindAccount,

	"bvn":                kindNationalID,
	"nin":                kindNationalID,
	"ssn":                kindNationalID,
	"nationalid":         kindNationalID,
	"nationalidentifier": kindNationalID,
	"idnumber":           kindNationalID,
	"passport":           kindNationalID,
	"passportnumber":     kindNationalID,
	"taxid":              kindNationalID,
}

func classify(key string) fieldKind {
	k := strings.ToLower(key)
	k = strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
	return sensitiveFields[k]
}

// Apply returns a shallow copy of record with sensitive fields redacted for role.
// Bank accounts and national identifiers are fully hidden for anyone without full access.
func Apply(record map[string]any, role rbac.Role) map[string]any {
	if record == nil {
		return nil
	}
	level := LevelFor(role)

	out := make(map[string]any, len(record))
	for key, value := range record {
		kind := classify(key)
		if kind == 0 || level == LevelFull || value == nil {
			out[key] = value
			continue
		}
		out[key] = maskValue(kind, value, level)
	}
	return out
}

// ApplyAll masks every record in records
func ApplyAll(records []map[string]any, role rbac.Role) []map[string]any {
	out := make([]map[string]any, len(records))
	for i, r := range records {
		out[i] = Apply(r, role)
	}
	return out
}

func maskValue(kind fieldKind, value any, level Level) any {
	s, ok := value.(string)
	if !ok {
		// Numbers or nested values in a sensitive slot cannot be partially shown.
		return Placeholder
	}

	switch kind {
	case kindPhone:
		return MaskPhone(s, level)
	case kindEmail:
		return MaskEmail(s, level)
	case kindName:
		return MaskName(s, level)
	case kindAccount:
		return MaskAccount(s, stricter(level, LevelMasked))
	case kindNationalID:
		return MaskNationalID(s, stricter(level, LevelMasked))
	}
	return Placeholder
}
