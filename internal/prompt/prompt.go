// Package prompt assembles the ordered message sequence sent to the
// completion service: a bounded context block rendered from retrieved
// documents, trimmed conversation history, and the user's query.
//
// Assembly is pure; it cannot fail on well-formed input.
package prompt

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/docent-ai/docent/internal/retriever"
)

// Role identifies the author of a message.
type Role string

// Message roles in completion-service order semantics.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a conversation. Insertion order is semantically
// meaningful: it defines the conversation order fed to the model.
type Message struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NoContextPlaceholder is returned when no documents were retrieved.
const NoContextPlaceholder = "No context available."

// DefaultSystemPrompt is the built-in assistant instruction.
const DefaultSystemPrompt = "You are an assistant with access to an internal knowledge base. " +
	"Answer questions using only the information from the supplied context. " +
	"If the context does not contain the answer, say so honestly."

// contextSeparator joins rendered document blocks.
const contextSeparator = "\n---\n"

// Builder renders context blocks and message sequences under fixed
// character budgets.
type Builder struct {
	systemPrompt     string
	maxContextLength int
	maxMessages      int
	logger           *slog.Logger
}

// NewBuilder creates a Builder. maxContextLength is a character budget for
// the rendered context block; maxMessages bounds the history tail (default
// 10). A nil logger falls back to slog.Default().
func NewBuilder(systemPrompt string, maxContextLength, maxMessages int, logger *slog.Logger) *Builder {
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}
	if maxContextLength <= 0 {
		maxContextLength = 4000
	}
	if maxMessages <= 0 {
		maxMessages = 10
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		systemPrompt:     systemPrompt,
		maxContextLength: maxContextLength,
		maxMessages:      maxMessages,
		logger:           logger,
	}
}

// BuildContext renders documents one-by-one in input order and joins them
// with a separator line. Accumulation stops the instant the next rendered
// block would push the result past the character budget; the remainder is
// omitted whole, never partially. The omission is a warning, not
// an error.
func (b *Builder) BuildContext(docs []retriever.Document) string {
	if len(docs) == 0 {
		return NoContextPlaceholder
	}

	var sb strings.Builder
	used := 0
	for i, doc := range docs {
		block := fmt.Sprintf("Document %d (Source: %s, Relevance: %.2f):\n%s\n",
			i+1, doc.Source, doc.Relevance, doc.Text)

		cost := len(block)
		if used > 0 {
			cost += len(contextSeparator)
		}
		if used+cost > b.maxContextLength {
			b.logger.Warn("context budget reached",
				"included", i, "total", len(docs), "budget", b.maxContextLength)
			break
		}

		if used > 0 {
			sb.WriteString(contextSeparator)
		}
		sb.WriteString(block)
		used += cost
	}

	return sb.String()
}

// TrimHistory returns the last maxMessages entries of history, preserving
// order. No summarization is performed.
func (b *Builder) TrimHistory(history []Message) []Message {
	if len(history) <= b.maxMessages {
		return history
	}
	return history[len(history)-b.maxMessages:]
}

// BuildMessages assembles the full sequence for the completion service:
// system message, trimmed history, then one user message combining the
// rendered context block with the literal query.
//
// systemPrompt overrides the builder's default when non-empty. The
// answer-only-from-context instruction is a prompt-level contract; the
// model, not this component, is responsible for compliance.
func (b *Builder) BuildMessages(query string, docs []retriever.Document, history []Message, systemPrompt string) []Message {
	var messages []Message

	sys := systemPrompt
	if sys == "" {
		sys = b.systemPrompt
	}
	if sys != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: sys})
	}

	messages = append(messages, b.TrimHistory(history)...)

	userContent := fmt.Sprintf(`Context from the knowledge base:

%s

---

User question: %s

Answer the question using only the information from the context above.`,
		b.BuildContext(docs), query)

	messages = append(messages, Message{Role: RoleUser, Content: userContent})

	b.logger.Debug("built prompt", "messages", len(messages), "documents", len(docs))
	return messages
}
