package response

type Error struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Current string `json:"current,omitempty"`
	Target  string `json:"target,omitempty"`
}
