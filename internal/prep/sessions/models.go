package sessions

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Session is the aggregate root: interview-prep metadata owned by one user
// plus the ordered questions created with it.
type Session struct {
	ID            uuid.UUID   `json:"id"`
	Owner         string      `json:"owner"`
	Role          string      `json:"role"`
	Experience    Experience  `json:"experience"`
	TopicsToFocus string      `json:"topicsToFocus"`
	Description   string      `json:"description"`
	QuestionIDs   []uuid.UUID `json:"-"`
	Questions     []*Question `json:"questions"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}

// Topics splits TopicsToFocus on commas, trimming blanks.
func (s *Session) Topics() []string {
	var topics []string
	for _, topic := range strings.Split(s.TopicsToFocus, ",") {
		topic = strings.TrimSpace(topic)
		if topic != "" {
			topics = append(topics, topic)
		}
	}
	return topics
}

// Question is a question/answer pair that belongs to exactly one session
type Question struct {
	ID        uuid.UUID `json:"id"`
	SessionID uuid.UUID `json:"session"`
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	IsPinned  bool      `json:"isPinned"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Experience is caller supplied and opaque. Clients send it either as a
// number of years or as free text, it is always stored as text.
type Experience string

func (e Experience) String() string {
	return string(e)
}

func (e *Experience) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*e = Experience(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("experience must be a string or a number: %w", err)
	}

	*e = Experience(num.String())
	return nil
}

// QuestionInput is one {question, answer} pair of a create request
type QuestionInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// CreateSessionRequest represents a request to create a session with its initial questions
type CreateSessionRequest struct {
	Role          string          `json:"role"`
	Experience    Experience      `json:"experience"`
	TopicsToFocus string          `json:"topicsToFocus"`
	Description   string          `json:"description"`
	Questions     []QuestionInput `json:"questions"`
}

// Validate checks presence of the required metadata
func (r *CreateSessionRequest) Validate() error {
	if strings.TrimSpace(r.Role) == "" {
		return fmt.Errorf("role is required")
	}
	if strings.TrimSpace(string(r.Experience)) == "" {
		return fmt.Errorf("experience is required")
	}
	if strings.TrimSpace(r.TopicsToFocus) == "" {
		return fmt.Errorf("topicsToFocus is required")
	}
	return nil
}
