package model

// CreateUserRequest is the body of POST /create_user.
type CreateUserRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Image  string `json:"image,omitempty"`
}

// CreateUserResponse is returned by POST /create_user.
type CreateUserResponse struct {
	UserID string `json:"user_id"`
	Token  string `json:"token"`
	Name   string `json:"name"`
}

// CreateChatRequest is the body of POST /create_chat.
type CreateChatRequest struct {
	User1     string `json:"user1"`
	User2     string `json:"user2"`
	CreatorID string `json:"creator_id"`
}

// CreateChatResponse is returned by POST /create_chat.
type CreateChatResponse struct {
	ChannelID string `json:"channel_id"`
	Details   string `json:"details"`
}

// AIChatRequest is the body of POST /ai_chat.
type AIChatRequest struct {
	ChannelID string `json:"channel_id"`
	Prompt    string `json:"prompt_1,omitempty"`
}

// AIChatResponse is returned by POST /ai_chat once every turn is delivered.
type AIChatResponse struct {
	Message string `json:"message"`
	RunID   string `json:"run_id"`
	Turns   int    `json:"turns"`
}

// ErrorResponse is the machine-readable error body.
type ErrorResponse struct {
	Error          string `json:"error"`
	Code           string `json:"code"`
	RunID          string `json:"run_id,omitempty"`
	TurnsCompleted *int   `json:"turns_completed,omitempty"`
}

// RunEventsResponse lists replayed run events.
type RunEventsResponse struct {
	Events       []RunEvent `json:"events"`
	LastSequence uint64     `json:"last_sequence"`
}
