package models

// RegisterRequest is the sign-up payload. Role and role-specific fields are
// optional; when omitted the registration flow falls back to staged data or
// the default role.
type RegisterRequest struct {
	Email    string   `json:"email"`
	Password string   `json:"password"`
	Name     string   `json:"name"`
	Role     string   `json:"role"`
	Fields   Document `json:"fields"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse carries the session token plus the resolved profile.
type AuthResponse struct {
	Token   string   `json:"token"`
	Profile *Profile `json:"profile"`
}

func (r *RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	} else if len(r.Password) < 6 {
		errors["password"] = "Password must be at least 6 characters"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Role != "" {
		if _, err := ParseRole(r.Role); err != nil {
			errors["role"] = "Role must be student, teacher or department"
		}
	}

	return errors
}

func (r *LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}
