package domain

// TokenPair is the access/refresh pair handed to an authenticated client.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// AuthResult is returned by flows that end with an authenticated user.
type AuthResult struct {
	User   *User
	Tokens TokenPair
}

// SignupResult carries the security token the client must echo back on
// verification and resend.
type SignupResult struct {
	User          *User
	SecurityToken string
}
