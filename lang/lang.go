// Package lang describes the languages offered by the translator and which
// speech features each one supports.
package lang

import "strings"

// BaseCode is the language every variant translates to and from.
const BaseCode = "spa"

// Language mirrors the server's language object.
type Language struct {
	Name    string  `json:"name"`
	Writing string  `json:"writing"`
	Code    string  `json:"code"`
	Dialect *string `json:"dialect"`
}

// Prefix returns the ISO part of a code such as "rap_Latn".
func Prefix(code string) string {
	if i := strings.IndexByte(code, '_'); i >= 0 {
		return code[:i]
	}
	return code
}

// Prefix returns the ISO part of the language code.
func (l Language) Prefix() string { return Prefix(l.Code) }

func (l Language) String() string {
	if l.Name != "" {
		return l.Name
	}
	return l.Code
}

type Variant string

const (
	VariantRapaNui    Variant = "rap"
	VariantMapuzungun Variant = "arn"
)

func (v Variant) Valid() bool {
	return v == VariantRapaNui || v == VariantMapuzungun
}

// Title is the display name of the variant's language.
func (v Variant) Title() string {
	if v == VariantRapaNui {
		return "Rapa Nui"
	}
	return "Mapuzungun"
}

var Spanish = Language{Name: "Español", Writing: "Latn", Code: "spa_Latn"}

// DefaultPair returns the source and target selected on startup.
func DefaultPair(v Variant) (Language, Language) {
	if v == VariantMapuzungun {
		dialect := "n"
		return Spanish, Language{Name: "Huilliche Azümchefe", Writing: "a0", Code: "arn_a0_h", Dialect: &dialect}
	}
	return Spanish, Language{Name: "Rapa Nui", Writing: "Latn", Code: "rap_Latn"}
}
