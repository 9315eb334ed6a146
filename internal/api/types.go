package api

// AskRequest is the body of POST /api/v1/chat. ConversationID is empty
// for the first message of a new conversation.
type AskRequest struct {
	UserID         string `json:"user_id"`
	Message        string `json:"message"`
	Context        string `json:"context"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// AskResponse echoes the user message and carries the assistant answer.
// Title is only set when the backend created a new conversation.
type AskResponse struct {
	Message        string `json:"message"`
	Answer         string `json:"answer"`
	ConversationID string `json:"conversation_id"`
	Title          string `json:"title,omitempty"`
}

type Conversation struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	Title       string `json:"title"`
	IsFavourite bool   `json:"is_favourite"`
	IsArchived  bool   `json:"is_archived"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ConversationPatch is a partial conversation update. Nil fields are
// omitted from the PATCH body.
type ConversationPatch struct {
	Title       *string `json:"title,omitempty"`
	IsFavourite *bool   `json:"is_favourite,omitempty"`
	IsArchived  *bool   `json:"is_archived,omitempty"`
}

type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Role           string `json:"role"` // "user" or "assistant"
	Content        string `json:"content"`
	CreatedAt      string `json:"created_at"`
}

// Memory fact categories as stored by the backend.
const (
	CategoryPersonal         = "personal"
	CategoryPreference       = "preference"
	CategoryProject          = "project"
	CategoryProjectMilestone = "project_milestone"
	CategoryEphemeral        = "ephemeral"
)

// MemoryFact is one persisted piece of information the assistant has
// learned about the user.
type MemoryFact struct {
	ID         string  `json:"id"`
	UserID     string  `json:"user_id"`
	Category   string  `json:"category"`
	Importance float64 `json:"importance"` // 0..1
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Context    string  `json:"context,omitempty"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
}
