package entity

import "encoding/json"

type MessageName string

const (
	MessageStartElementSelection  MessageName = "startElementSelection"
	MessageCancelElementSelection MessageName = "cancelElementSelection"
	MessageElementSelected        MessageName = "elementSelected"
	MessageSaveAPIKey             MessageName = "saveApiKey"
	MessageGetAPIKey              MessageName = "getApiKey"
	MessageDeleteAPIKey           MessageName = "deleteApiKey"
	MessageSavePrompt             MessageName = "savePrompt"
	MessageUpdatePrompt           MessageName = "updatePrompt"
	MessageSelectPrompt           MessageName = "selectPrompt"
	MessageSelectModel            MessageName = "selectModel"
	MessageStatus                 MessageName = "status"
)

func (m MessageName) String() string {
	return string(m)
}

// Response is the single reply to a message.
type Response struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	// Kind is set for episode failures.
	Kind FillErrorKind `json:"kind,omitempty"`
}
