package stementity

type StemRole string

const (
	VocalsRole       StemRole = "vocals"
	InstrumentalRole StemRole = "instrumental"
	DrumsRole        StemRole = "drums"
	BassRole         StemRole = "bass"
	OtherRole        StemRole = "other"
)

var stemRoles = map[string]bool{
	string(VocalsRole):       true,
	string(InstrumentalRole): true,
	string(DrumsRole):        true,
	string(BassRole):         true,
	string(OtherRole):        true,
}

func IsStemRole(value string) bool {
	return stemRoles[value]
}

// StemSet maps stem roles to file paths. A StemSet is only handed out once
// it contains exactly the roles required by the requested mode.
type StemSet map[StemRole]string

func RequiredRoles(mode StemsMode) []StemRole {
	if mode == FourStemsMode {
		return []StemRole{VocalsRole, DrumsRole, BassRole, OtherRole}
	}

	return []StemRole{VocalsRole, InstrumentalRole}
}

func (s StemSet) MissingRoles(mode StemsMode) []StemRole {
	missing := []StemRole{}
	for _, role := range RequiredRoles(mode) {
		if _, ok := s[role]; !ok {
			missing = append(missing, role)
		}
	}

	return missing
}
