package inference

import "github.com/promptops/llmpipe/internal/core/domain"

// chatRequest is the wire body sent to the chat-completions endpoint.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse covers the fields the pipeline consumes: the first choice's
// message content and the usage block.
type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   domain.Usage `json:"usage"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}
