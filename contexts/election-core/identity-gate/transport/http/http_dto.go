package http

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type RequestChallengeRequest struct {
	Identifier string `json:"identifier"`
}

type RequestChallengeResponse struct {
	ChallengeID string `json:"challenge_id"`
	ExpiresAt   string `json:"expires_at"`
}

type VerifyChallengeRequest struct {
	Identifier string `json:"identifier"`
	Code       string `json:"code"`
}

type VerifyChallengeResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}
