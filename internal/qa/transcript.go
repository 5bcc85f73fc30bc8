package qa

import (
	"sync"
	"time"

	"github.com/ziadkadry99/invoicer/internal/llm"
)

// Turn is one displayed chat message.
type Turn struct {
	Role    llm.Role  `json:"role"`
	Content string    `json:"content"`
	Sources []string  `json:"sources,omitempty"`
	At      time.Time `json:"at"`
}

// Transcript is the display history of a chat. It is for presentation only
// and is never forwarded to the model.
type Transcript struct {
	mu    sync.Mutex
	turns []Turn
}

// Record appends a question and its answer.
func (t *Transcript) Record(question string, a Answer) {
	now := time.Now()
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turns = append(t.turns,
		Turn{Role: llm.RoleUser, Content: question, At: now},
		Turn{Role: llm.RoleAssistant, Content: a.Text, Sources: a.Sources, At: now},
	)
}

// Turns returns a copy of the history.
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Turn(nil), t.turns...)
}

// Reset clears the history.
func (t *Transcript) Reset() {
	t.mu.Lock()
	t.turns = nil
	t.mu.Unlock()
}
