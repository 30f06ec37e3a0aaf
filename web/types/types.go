package types

// Message is one turn of conversation history, in the role/content format
// both query backends accept.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
