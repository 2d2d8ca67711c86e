package response

// Accepted - ответ на принятый webhook.
type Accepted struct {
	Status string `json:"status"`
}

type Health struct {
	Status string `json:"status"`
}
