package ai

import (
	"github.com/cloudwego/eino/schema"

	"github.com/tbonnaves/chat-relay/internal/model/chat"
)

// BuildMessages converts stored history into the upstream request: the plain
// (timestamp-stripped) transcript followed by exactly one new user message
// carrying the rule preamble and the prompt. An empty rule text is legal and
// simply leaves the prompt preceded by a blank preamble.
func BuildMessages(history []chat.Message, ruleText, prompt string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+1)
	for _, msg := range history {
		content := chat.PlainContent(msg.Content)
		switch msg.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(content, nil))
		default:
			// Roles this relay does not produce are forwarded untouched.
			messages = append(messages, &schema.Message{
				Role:    schema.RoleType(msg.Role),
				Content: content,
			})
		}
	}

	messages = append(messages, schema.UserMessage(ruleText+"\n\n"+prompt))
	return messages
}
