package domain

import "strings"

// Field enumerates the user-record columns a single interaction may update.
// Keeping this closed means an update target is resolved at compile time
// instead of by string lookup against a header row.
type Field int

const (
	FieldChallengeResponse Field = iota + 1
	FieldClickedButton
	FieldGender
	FieldLocation
	FieldLanguage
	FieldReferralSource
)

// FieldUpdate names at most one field to set alongside the bookkeeping
// columns of an interaction.
type FieldUpdate struct {
	Field Field
	Value string
}

// Column returns the relational/document column name for the field.
func (f Field) Column() string {
	switch f {
	case FieldChallengeResponse:
		return "challenge_response"
	case FieldClickedButton:
		return "clicked_button"
	case FieldGender:
		return "gender"
	case FieldLocation:
		return "location"
	case FieldLanguage:
		return "language"
	case FieldReferralSource:
		return "referral_source"
	default:
		return ""
	}
}

// Header returns the title used for the field in file and workbook headers.
func (f Field) Header() string {
	switch f {
	case FieldChallengeResponse:
		return "Challenge Response"
	case FieldClickedButton:
		return "Clicked Button"
	case FieldGender:
		return "Gender"
	case FieldLocation:
		return "Location"
	case FieldLanguage:
		return "Language"
	case FieldReferralSource:
		return "Referral Source"
	default:
		return ""
	}
}

// String implements fmt.Stringer using the header title.
func (f Field) String() string {
	return f.Header()
}

// ParseField maps a symbolic field name ("Clicked Button", "clicked_button")
// to its Field. The boolean is false for unrecognized names; callers log and
// proceed without setting any extra field rather than failing the write.
func ParseField(name string) (Field, bool) {
	normalized := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(name), " ", "_"))
	for _, f := range []Field{
		FieldChallengeResponse,
		FieldClickedButton,
		FieldGender,
		FieldLocation,
		FieldLanguage,
		FieldReferralSource,
	} {
		if normalized == f.Column() {
			return f, true
		}
	}
	return 0, false
}
