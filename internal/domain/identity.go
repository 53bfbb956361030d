package domain

// Identity is the caller identity supplied by the external identity
// collaborator. The system trusts it as-is and performs no authentication of
// its own beyond token validation at the transport edge.
type Identity struct {
	UserID      string `json:"userId"`
	DisplayName string `json:"displayName"`
	AvatarURL   string `json:"avatarUrl,omitempty"`
}
