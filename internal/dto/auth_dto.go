package dto

// PrincipalResponse describes the caller resolved by the access gate.
type PrincipalResponse struct {
	Kind    string `json:"kind"` // api_key | identity
	UID     string `json:"uid,omitempty"`
	Email   string `json:"email,omitempty"`
	Role    string `json:"role,omitempty"`
	KeyName string `json:"keyName,omitempty"`
}
