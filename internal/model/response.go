package model

type ErrorResponse struct {
	Error string `json:"error"`
}

type PingResponse struct {
	Message string `json:"message"`
}

type RootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
	Version string `json:"version"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	SlackBot string `json:"slack_bot"`
}

type ChallengeResponse struct {
	Challenge string `json:"challenge"`
}
