package domain

// Message represents one turn in a chat timeline (user or model).
type Message struct {
	ID        MessageID
	ChatID    ChatID
	Role      Role
	Text      string
	CreatedAt Timestamp
}

// Chat represents one assistant conversation owned by a user.
type Chat struct {
	ID        ChatID
	UserID    UserID
	Title     string
	CreatedAt Timestamp
	UpdatedAt Timestamp
}

// Part is a single text fragment of a provider turn.
type Part struct {
	Text string `json:"text"`
}

// ProviderTurn is the turn shape the generation provider expects.
type ProviderTurn struct {
	Role  string `json:"role"`
	Parts []Part `json:"parts"`
}

// ToProviderTurns maps messages to provider turns, preserving order.
func ToProviderTurns(msgs []Message) []ProviderTurn {
	out := make([]ProviderTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, ProviderTurn{
			Role:  providerRole(m.Role),
			Parts: []Part{{Text: m.Text}},
		})
	}
	return out
}

func providerRole(r Role) string {
	if r == RoleModel {
		return "model"
	}
	return "user"
}
