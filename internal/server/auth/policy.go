package auth

// Password rule messages, in the order PasswordPolicy.Check reports them.
// Clients display these verbatim.
const (
	RuleMinLength       = "Passwords must be at least 8 characters."
	RuleNonAlphanumeric = "Passwords must have at least one non alphanumeric character."
	RuleDigit           = "Passwords must have at least one digit ('0'-'9')."
	RuleLowercase       = "Passwords must have at least one lowercase ('a'-'z')."
	RuleUppercase       = "Passwords must have at least one uppercase ('A'-'Z')."
)

// PasswordPolicy describes the strength requirements for new passwords.
type PasswordPolicy struct {
	MinLength              int
	RequireNonAlphanumeric bool
	RequireDigit           bool
	RequireLowercase       bool
	RequireUppercase       bool
}

// DefaultPasswordPolicy requires 8 characters with at least one digit, one
// lowercase letter, one uppercase letter and one symbol.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:              8,
		RequireNonAlphanumeric: true,
		RequireDigit:           true,
		RequireLowercase:       true,
		RequireUppercase:       true,
	}
}

// Check returns every rule password violates. An empty result means the
// password is acceptable. Digits and letters are ASCII only; anything else
// counts as non-alphanumeric.
func (p PasswordPolicy) Check(password string) []string {
	var hasDigit, hasLower, hasUpper, hasOther bool
	length := 0
	for _, r := range password {
		length++
		switch {
		case r >= '0' && r <= '9':
			hasDigit = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		default:
			hasOther = true
		}
	}

	var violated []string
	if length < p.MinLength {
		violated = append(violated, RuleMinLength)
	}
	if p.RequireNonAlphanumeric && !hasOther {
		violated = append(violated, RuleNonAlphanumeric)
	}
	if p.RequireDigit && !hasDigit {
		violated = append(violated, RuleDigit)
	}
	if p.RequireLowercase && !hasLower {
		violated = append(violated, RuleLowercase)
	}
	if p.RequireUppercase && !hasUpper {
		violated = append(violated, RuleUppercase)
	}
	return violated
}
