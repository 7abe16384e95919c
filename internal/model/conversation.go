package model

// Message roles
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// DefaultOptionalAllowed is the number of optional filters considered before a search.
const DefaultOptionalAllowed = 3

// ChatMessage is one entry of the conversation history
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ConversationState is the per-session dialog record
type ConversationState struct {
	SessionID        string        `json:"session_id"`
	Messages         []ChatMessage `json:"messages"`
	CollectedFilters FilterSet     `json:"collected_filters"`
	// OptionalAllowed is tracked but not enforced: optional filters supplied by
	// the user are always applied.
	OptionalAllowed int `json:"optional_allowed"`
}

// NewConversationState returns an empty conversation for sessionID
func NewConversationState(sessionID string, optionalAllowed int) *ConversationState {
	if optionalAllowed <= 0 {
		optionalAllowed = DefaultOptionalAllowed
	}
	return &ConversationState{
		SessionID:       sessionID,
		Messages:        []ChatMessage{},
		OptionalAllowed: optionalAllowed,
	}
}

// AppendMessage records a message in the history
func (s *ConversationState) AppendMessage(role, content string) {
	s.Messages = append(s.Messages, ChatMessage{Role: role, Content: content})
}

// Clone returns a deep copy so callers never share history or filters
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append([]ChatMessage{}, s.Messages...)
	out.CollectedFilters = s.CollectedFilters.Clone()
	return &out
}

// SessionRecord is everything the store keeps for one session
type SessionRecord struct {
	Conversation ConversationState `json:"conversation"`
	GeneratedSQL *string           `json:"generated_sql"`
	QueryResults []Property        `json:"query_results"`
}

// QueryResult is the last search of a session. Results is nil when the
// search failed; SQL is empty when no search ever ran.
type QueryResult struct {
	SQL     string
	Results []Property
}

// Searched reports whether a search has executed for the session
func (q *QueryResult) Searched() bool {
	return q != nil && q.SQL != ""
}
