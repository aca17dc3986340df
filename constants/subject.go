package constants

// SubjectCodes holds the canonical KCSE subject codes, exactly as
// they appear in template column headers.
var SubjectCodes = []string{
	"ENG", "KIS", "MAT", "BIO", "PHY", "CHE", "GEO", "HIS", "CRE",
	"IRE", "HRE", "AGR", "BST", "COM", "KSL", "FAS", "LIT", "GSC",
	"AD", "HSC",
}

// DefaultSubjectAliases maps subject names as printed on KNEC result
// slips (and their common truncations) to canonical codes. Alias
// matching is case-insensitive and substring-based, so longer keys
// should be listed for subjects whose short key would be ambiguous.
var DefaultSubjectAliases = map[string]string{
	"ENGLISH":                       "ENG",
	"KISWAHILI":                     "KIS",
	"MATHEMATICS":                   "MAT",
	"MATHS":                         "MAT",
	"MATH":                          "MAT",
	"BIOLOGY":                       "BIO",
	"PHYSICS":                       "PHY",
	"CHEMISTRY":                     "CHE",
	"GEOGRAPHY":                     "GEO",
	"HISTORY AND GOVERNMENT":        "HIS",
	"HISTORY":                       "HIS",
	"CHRISTIAN RELIGIOUS EDUCATION": "CRE",
	"CHRISTIAN RELIGIOUS":           "CRE",
	"ISLAMIC RELIGIOUS EDUCATION":   "IRE",
	"HINDU RELIGIOUS EDUCATION":     "HRE",
	"AGRICULTURE":                   "AGR",
	"BUSINESS STUDIES":              "BST",
	"BUSINESS":                      "BST",
	"COMPUTER STUDIES":              "COM",
	"COMPUTER":                      "COM",
	"KENYA SIGN LANGUAGE":           "KSL",
	"FRENCH":                        "FAS",
	"LITERATURE":                    "LIT",
	"GENERAL SCIENCE":               "GSC",
	"ART AND DESIGN":                "AD",
	"HOME SCIENCE":                  "HSC",
}

// SubjectCodeSet returns the canonical codes as a lookup set.
func SubjectCodeSet() map[string]struct{} {
	m := make(map[string]struct{}, len(SubjectCodes))
	for _, c := range SubjectCodes {
		m[c] = struct{}{}
	}
	return m
}
