package session

import (
	"sync"
	"time"

	"github.com/sweetpotato0/streamchat/message"
)

// Conversation is the ordered message history of one session. It is
// append-only apart from Reset, which restores the single seed message.
// Role alternation is left to callers.
type Conversation struct {
	mu        sync.Mutex
	seed      string
	messages  []*message.Message
	updatedAt time.Time
}

// NewConversation creates a conversation holding only the seed greeting.
func NewConversation(seed string) *Conversation {
	c := &Conversation{seed: seed}
	c.Reset()
	return c
}

// Seed returns the assistant greeting restored by Reset.
func (c *Conversation) Seed() string {
	return c.seed
}

// Append adds msg to the end of the history.
func (c *Conversation) Append(msg *message.Message) {
	if msg == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, message.Clone(msg))
	c.updatedAt = time.Now()
}

// Reset discards the history and restores exactly one seed message.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = []*message.Message{message.Assistant(c.seed)}
	c.updatedAt = time.Now()
}

// Messages returns a copy of the history in order.
func (c *Conversation) Messages() []*message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return message.CloneMessages(c.messages)
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.messages)
}

// Last returns a copy of the newest message, or nil if the history is empty.
func (c *Conversation) Last() *message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return nil
	}
	return message.Clone(c.messages[len(c.messages)-1])
}

// AwaitingReply reports whether the newest message is from the user.
func (c *Conversation) AwaitingReply() bool {
	last := c.Last()
	return last != nil && last.Role == message.RoleUser
}

// UpdatedAt returns the time of the last mutation.
func (c *Conversation) UpdatedAt() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.updatedAt
}
