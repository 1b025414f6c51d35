package openaichat

// chatResponse mirrors the OpenAI-compatible chat completion response shape.
// Only the fields the engine reads are declared; everything else is ignored.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// chatError mirrors the error envelope most OpenAI-compatible servers return
// alongside a non-2xx status.
type chatError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
