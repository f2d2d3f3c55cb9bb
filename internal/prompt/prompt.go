// Package prompt builds the message sequences sent to the language models.
//
// Composition is pure: identical inputs always produce identical prompts,
// which keeps the answer pipeline testable against stub models. The fixed
// template text is part of the product surface and changes only through
// review with the content owners.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/session"
)

// Role identifies the author of a prompt message.
type Role string

// Prompt message roles.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a prompt. A Prompt is an ordered []Message,
// immutable once built and consumed exactly once by a model call.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Sentinels the answer model is instructed to emit around the origin
// trailer. The splitter in the chat package keys off these literals.
const (
	// Marker separates the visible answer from the citation trailer.
	Marker = "<<"

	// Terminator is the literal remainder of the stop token after Marker.
	Terminator = "STOP>>"

	// OriginLabel prefixes the origin path inside the trailer.
	OriginLabel = "Origin: "

	// Closing is the trailing literal stripped from the origin.
	Closing = ">>"
)

// Composer builds rephrase and answer prompts with configured history
// windows.
type Composer struct {
	rephraseTurns int
	answerTurns   int
}

// NewComposer creates a Composer keeping the most recent rephraseTurns
// and answerTurns history turns in the respective prompts.
func NewComposer(rephraseTurns, answerTurns int) *Composer {
	if rephraseTurns < 0 {
		rephraseTurns = 0
	}
	if answerTurns < 0 {
		answerTurns = 0
	}
	return &Composer{rephraseTurns: rephraseTurns, answerTurns: answerTurns}
}

// Rephrase builds the prompt asking the model to turn the question plus
// recent history into a standalone search query.
func (c *Composer) Rephrase(question string, history []session.Turn) []Message {
	return []Message{
		{
			Role:    RoleUser,
			Content: fmt.Sprintf(rephraseTemplate, historyJSON(history, c.rephraseTurns), question),
		},
	}
}

// Answer builds the grounded answer prompt from the retrieved context, the
// recent history, and the current question.
func (c *Composer) Answer(question, context string, history []session.Turn) []Message {
	return []Message{
		{Role: RoleSystem, Content: answerSystemMessage},
		{
			Role:    RoleUser,
			Content: fmt.Sprintf(answerTemplate, context, historyJSON(history, c.answerTurns), question),
		},
	}
}

// historyJSON renders the most recent n turns as indented JSON, matching
// the layout the templates were tuned against. Marshal cannot fail on
// session.Turn, so the error is ignored.
func historyJSON(history []session.Turn, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	if len(history) == 0 {
		history = []session.Turn{}
	}
	data, _ := json.MarshalIndent(history, "", "  ")
	return string(data)
}
