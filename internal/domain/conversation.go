package domain

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Greeting seeds every new conversation.
const Greeting = "Hello! How can I help you with your crops today?"

// Turn is one message in a conversation, optionally carrying an image.
// Turns are immutable once appended.
type Turn struct {
	Role      string    `json:"role"`
	Text      string    `json:"text,omitempty"`
	Image     []byte    `json:"-"`
	ImageName string    `json:"imageName,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

func (t Turn) HasImage() bool { return len(t.Image) > 0 }

// Conversation is an ordered, append-only sequence of turns scoped to one
// session. It is not persisted and dies with the process. It is not safe
// for concurrent use: the orchestrator processes one turn at a time per
// conversation.
type Conversation struct {
	ID    string
	Turns []Turn
}

// NewConversation creates a conversation seeded with the assistant greeting.
func NewConversation(id string) *Conversation {
	return &Conversation{
		ID: id,
		Turns: []Turn{{
			Role:      RoleAssistant,
			Text:      Greeting,
			CreatedAt: time.Now(),
		}},
	}
}

func (c *Conversation) Append(t Turn) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}
	c.Turns = append(c.Turns, t)
}

func (c *Conversation) Len() int { return len(c.Turns) }
