package domain

import "time"

// SenderType mirrors spec §3's Dialogue message sender_type enum. Grounded on
// the teacher's entity.Role (system/user/assistant/tool) but renamed to the
// spec's own vocabulary (User/Agent/Tool/System).
type SenderType string

const (
	SenderUser   SenderType = "user"
	SenderAgent  SenderType = "agent"
	SenderTool   SenderType = "tool"
	SenderSystem SenderType = "system"
)

// Session is a dialogue session between a user and a role (spec §3 "Dialogue
// session"). Grounded on the teacher's entity.Session, trimmed of the
// agent-runtime compaction fields that belong to a general-purpose agent
// framework rather than this character-conversation core.
type Session struct {
	SessionID    string    `json:"session_id"`
	UserName     string    `json:"user_name"`
	RoleID       string    `json:"role_id"`
	Title        string    `json:"title,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastMessageAt time.Time `json:"last_message_at"`
	TotalCount   int       `json:"total_count"`
	UserCount    int       `json:"user_count"`
	AgentCount   int       `json:"agent_count"`
}

// Message is a single dialogue row (spec §3 "Dialogue message").
type Message struct {
	MessageID      string            `json:"message_id"`
	SessionID      string            `json:"session_id"`
	SenderType     SenderType        `json:"sender_type"`
	Content        string            `json:"content"`
	ToolName       string            `json:"tool_name,omitempty"`
	ToolParameters string            `json:"tool_parameters,omitempty"`
	ToolResult     string            `json:"tool_result,omitempty"`
	IsToolQuery    bool              `json:"is_tool_query,omitempty"`
	Order          int               `json:"order"`
	Timestamp      time.Time         `json:"timestamp"`
	Metadata       map[string]string `json:"metadata,omitempty"`

	// Persisted marks whether this hot-tier row has already been written
	// through to the durable tier (spec §4.H persistence policy).
	Persisted bool `json:"persisted"`
}

// NewUserMessage builds a User dialogue row.
func NewUserMessage(sessionID, content string, at time.Time) *Message {
	return &Message{SessionID: sessionID, SenderType: SenderUser, Content: content, Timestamp: at}
}

// NewAgentMessage builds an Agent dialogue row.
func NewAgentMessage(sessionID, content string, at time.Time) *Message {
	return &Message{SessionID: sessionID, SenderType: SenderAgent, Content: content, Timestamp: at}
}

// NewToolMessage builds a Tool dialogue row recording a tool call + result.
func NewToolMessage(sessionID, toolName, params, result string, at time.Time) *Message {
	return &Message{
		SessionID: sessionID, SenderType: SenderTool, ToolName: toolName,
		ToolParameters: params, ToolResult: result, IsToolQuery: true, Timestamp: at,
	}
}
