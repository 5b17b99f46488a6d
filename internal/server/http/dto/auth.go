package dto

// AuthRequest carries the credentials for register and login.
type AuthRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// AuthResponse returns the session token also set as cookie and Authorization header.
type AuthResponse struct {
	Token string `json:"token"`
}
