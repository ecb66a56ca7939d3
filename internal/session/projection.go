// ABOUTME: Projects a hydrated conversation into the session init response
// ABOUTME: Message bodies are rendered to HTML with goldmark alongside the raw text

package session

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/yuin/goldmark"

	"github.com/2389/coven-connect/internal/store"
)

// MessageTypeSessionInit tags the session init response
const MessageTypeSessionInit = 1

// SessionInitResponse is sent to the client when a session starts
type SessionInitResponse struct {
	MessageType    int               `json:"messageType"`
	ConversationID string            `json:"conversationId"`
	AgentName      string            `json:"agentName"`
	Archived       bool              `json:"archived"`
	Timestamp      int64             `json:"timestamp"`
	Messages       []MessageResponse `json:"messages"`
}

// MessageResponse is one message in a SessionInitResponse
type MessageResponse struct {
	ID          string `json:"id"`
	Author      string `json:"author"`
	Timestamp   int64  `json:"timestamp"`
	Content     string `json:"content"`
	ContentHTML string `json:"contentHtml"`
}

// ErrNotHydrated is returned by Project when the conversation lacks its agent
var ErrNotHydrated = errors.New("conversation is not hydrated")

var markdown = goldmark.New()

// Project converts a hydrated conversation into the client response.
// A nil conversation or a missing agent is an error, never an empty response.
func Project(conv *store.Conversation) (*SessionInitResponse, error) {
	if conv == nil {
		return nil, fmt.Errorf("projecting conversation: %w", ErrNotHydrated)
	}
	if conv.Agent == nil || conv.Agent.Name == "" {
		return nil, fmt.Errorf("projecting conversation %s: %w", conv.ID, ErrNotHydrated)
	}

	messages := make([]MessageResponse, 0, len(conv.Messages))
	for _, m := range lo.Compact(conv.Messages) {
		html, err := renderHTML(m.Content)
		if err != nil {
			return nil, fmt.Errorf("rendering message %s: %w", m.ID, err)
		}
		messages = append(messages, MessageResponse{
			ID:          m.ID,
			Author:      string(m.Author),
			Timestamp:   m.Timestamp,
			Content:     m.Content,
			ContentHTML: html,
		})
	}

	return &SessionInitResponse{
		MessageType:    MessageTypeSessionInit,
		ConversationID: conv.ID,
		AgentName:      conv.Agent.Name,
		Archived:       conv.Archived,
		Timestamp:      conv.Timestamp,
		Messages:       messages,
	}, nil
}

func renderHTML(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}
