package models

// AbilityType is one of the five fixed growth categories. The wire value is
// the Korean name used by the app and by all generation prompts.
type AbilityType string

const (
	AbilityCourage        AbilityType = "용기"
	AbilityEmpathy        AbilityType = "공감"
	AbilityCreativity     AbilityType = "창의성"
	AbilityResponsibility AbilityType = "책임감"
	AbilityFriendship     AbilityType = "우정"
)

// AllAbilities lists the taxonomy in its canonical order. Order matters:
// deterministic fallbacks iterate it when picking abilities for choices.
var AllAbilities = []AbilityType{
	AbilityCourage,
	AbilityEmpathy,
	AbilityCreativity,
	AbilityResponsibility,
	AbilityFriendship,
}

// abilityEnglishNames maps the wire values to the English keys used by the
// backend's completion records (totalCourage, totalEmpathy, ...).
var abilityEnglishNames = map[AbilityType]string{
	AbilityCourage:        "courage",
	AbilityEmpathy:        "empathy",
	AbilityCreativity:     "creativity",
	AbilityResponsibility: "responsibility",
	AbilityFriendship:     "friendship",
}

var abilityByEnglishName = func() map[string]AbilityType {
	m := make(map[string]AbilityType, len(abilityEnglishNames))
	for k, v := range abilityEnglishNames {
		m[v] = k
	}
	return m
}()

// EnglishName returns the backend key for the ability ("courage" for 용기).
func (a AbilityType) EnglishName() string {
	return abilityEnglishNames[a]
}

// IsValid reports whether a is one of the five taxonomy values.
func (a AbilityType) IsValid() bool {
	_, ok := abilityEnglishNames[a]
	return ok
}

// AbilityFromEnglish resolves a backend key back to the taxonomy value.
func AbilityFromEnglish(name string) (AbilityType, bool) {
	a, ok := abilityByEnglishName[name]
	return a, ok
}
