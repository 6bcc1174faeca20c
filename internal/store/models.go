package store

import "time"

// ConversationStatus is the lifecycle state of a Conversation.
type ConversationStatus string

const (
	ConversationActive   ConversationStatus = "active"
	ConversationArchived ConversationStatus = "archived"
)

// ExchangeStatus is the lifecycle state of an Exchange.
type ExchangeStatus string

const (
	ExchangeInProgress ExchangeStatus = "in_progress"
	ExchangeCompleted  ExchangeStatus = "completed"
	ExchangeFailed     ExchangeStatus = "failed"
)

// MessageRole identifies who/what produced a Message.
type MessageRole string

const (
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
	RoleSystem    MessageRole = "system"
)

// Conversation is §3's Conversation entity.
type Conversation struct {
	ID           int64              `db:"id"`
	CreatedAt    time.Time          `db:"created_at"`
	Title        *string            `db:"title"`
	Status       ConversationStatus `db:"status"`
	Summary      *string            `db:"summary"`
	SummaryModel *string            `db:"summary_model"`
	SummaryCost  *float64           `db:"summary_cost"`
}

// Exchange is §3's Exchange entity.
type Exchange struct {
	ID               int64          `db:"id"`
	ConversationID   int64          `db:"conversation_id"`
	ExchangeNumber   int64          `db:"exchange_number"`
	StartedAt        time.Time      `db:"started_at"`
	CompletedAt      *time.Time     `db:"completed_at"`
	Status           ExchangeStatus `db:"status"`
	UserMessage      string         `db:"user_message"`
	AssistantMessage *string        `db:"assistant_message"`
	Summary          *string        `db:"summary"`
	Error            *string        `db:"error"`
	TokensInput      int64          `db:"tokens_input"`
	TokensOutput     int64          `db:"tokens_output"`
	Spend            float64        `db:"spend"`
	MessageCount     int64          `db:"message_count"`
	ToolCallCount    int64          `db:"tool_call_count"`
}

// Message is §3's Message entity, append-only within an Exchange.
type Message struct {
	ID                int64       `db:"id"`
	ConversationID    int64       `db:"conversation_id"`
	ExchangeID        int64       `db:"exchange_id"`
	Actor             *string     `db:"actor"`
	Role              MessageRole `db:"role"`
	Content           string      `db:"content"`
	Model             *string     `db:"model"`
	TokensInput       *int64      `db:"tokens_input"`
	TokensOutput      *int64      `db:"tokens_output"`
	Spend             *float64    `db:"spend"`
	ToolCalls         *string     `db:"tool_calls"` // JSON-encoded []ToolCall
	ToolCallID        *string     `db:"tool_call_id"`
	ToolResult        *string     `db:"tool_result"` // JSON-encoded result
	Error             *string     `db:"error"`
	Redacted          bool        `db:"redacted"`
	IncludeInContext  bool        `db:"include_in_context"`
	CreatedAt         time.Time   `db:"created_at"`
}

// NewMessage is the set of fields a caller supplies to add_message; the
// rest (id, created_at) are assigned by the Gateway.
type NewMessage struct {
	ConversationID   int64
	ExchangeID       int64
	Actor            *string
	Role             MessageRole
	Content          string
	Model            *string
	TokensInput      *int64
	TokensOutput     *int64
	Spend            *float64
	ToolCalls        *string
	ToolCallID       *string
	ToolResult       *string
	Error            *string
	Redacted         bool
	IncludeInContext bool
}

// ExchangeUpdate is the whitelisted set of fields update_exchange may change.
type ExchangeUpdate struct {
	Status           *ExchangeStatus
	Summary          *string
	SummaryModel     *string
	Error            *string
	AssistantMessage *string
	CompletedAt      *time.Time
	TokensInput      *int64
	TokensOutput     *int64
	Spend            *float64
	MessageCount     *int64
	ToolCallCount    *int64
}

// ExchangeMetrics is the accumulated per-iteration metrics the
// Tool-Calling Loop feeds into complete_exchange (§4.5, §4.6).
type ExchangeMetrics struct {
	TokensInput   int64
	TokensOutput  int64
	Spend         float64
	MessageCount  int64
	ToolCallCount int64
}

// EmbeddingRecord is §3's EmbeddingRecord entity, keyed by (Kind, Source).
type EmbeddingRecord struct {
	Kind      string    `db:"kind"`
	Source    string    `db:"source"`
	Content   string    `db:"content"`
	Dim       int       `db:"dim"`
	Embedding []byte    `db:"embedding"` // little-endian float32 vector
	IndexedAt time.Time `db:"indexed_at"`
}

// FailedJob is §3's background-failure sink.
type FailedJob struct {
	ID         int64     `db:"id"`
	JobType    string    `db:"job_type"`
	RefID      *string   `db:"ref_id"`
	Payload    *string   `db:"payload"`
	Error      string    `db:"error"`
	RetryCount int       `db:"retry_count"`
	FailedAt   time.Time `db:"failed_at"`
}

// SessionTokens is the result of session_tokens (§4.1).
type SessionTokens struct {
	Input  int64   `db:"input"`
	Output int64   `db:"output"`
	Total  int64   `db:"total"`
	Spend  float64 `db:"spend"`
}
