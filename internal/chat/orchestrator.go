// Package chat runs the conversational pipeline: rephrase the question
// against session history, retrieve grounding passages, compose the answer
// prompt, and stream the generated answer while recovering its citation.
package chat

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/cases"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/language"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/prompt"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/retrieval"
	"github.com/gchcm-gchgc/virtual-assistant-ai-ia-assistant-virtuel/internal/session"
)

// Request carries one user exchange through the pipeline.
type Request struct {
	Question       string
	SessionKey     string
	CaseID         int64
	ActivityRecord int64
}

// PromptAnswer is the non-streaming result: the composed answer prompt and
// the fully drained model response.
type PromptAnswer struct {
	Prompt   string `json:"prompt"`
	Response string `json:"response"`
}

// HistoryStore tracks per-session conversation turns.
type HistoryStore interface {
	History(key string) []session.Turn
	Append(key, user, assistant string)
}

// Completer runs a single-shot, non-streaming generation.
type Completer interface {
	Complete(ctx context.Context, msgs []prompt.Message) (string, error)
}

// Streamer produces a token stream for a composed prompt.
type Streamer interface {
	Stream(ctx context.Context, msgs []prompt.Message) iter.Seq2[string, error]
}

// Embedder turns text into a retrieval query vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher fans a query vector out across every passage collection.
type Searcher interface {
	SearchAll(ctx context.Context, embedding []float32, k int) ([]retrieval.Hit, error)
}

// CaseStore fetches structured case details.
type CaseStore interface {
	Get(ctx context.Context, caseID, activityRecord int64) (*cases.Case, error)
}

// LogSink records completed exchanges. Failures are logged, never surfaced.
type LogSink interface {
	AppendExchange(ctx context.Context, sessionID int64, origin, question, answer string) error
}

// Orchestrator wires the pipeline stages together. All dependencies are
// injected; the orchestrator holds no connections of its own.
type Orchestrator struct {
	sessions  HistoryStore
	composer  *prompt.Composer
	rephraser Completer
	answerer  interface {
		Completer
		Streamer
	}
	embedder Embedder
	searcher Searcher
	cases    CaseStore
	sink     LogSink
	topK     int
	logger   *slog.Logger
}

// Config collects the Orchestrator's dependencies.
type Config struct {
	Sessions  HistoryStore
	Composer  *prompt.Composer
	Rephraser Completer
	Answerer  interface {
		Completer
		Streamer
	}
	Embedder Embedder
	Searcher Searcher
	Cases    CaseStore
	Sink     LogSink
	TopK     int
	Logger   *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  cfg.Sessions,
		composer:  cfg.Composer,
		rephraser: cfg.Rephraser,
		answerer:  cfg.Answerer,
		embedder:  cfg.Embedder,
		searcher:  cfg.Searcher,
		cases:     cfg.Cases,
		sink:      cfg.Sink,
		topK:      cfg.TopK,
		logger:    logger,
	}
}

// StreamChat runs the full pipeline and feeds visible answer chunks to emit
// in model output order. After the stream drains, the exchange is appended
// to session history and recorded in the chat log.
//
// A failure before the first emitted chunk returns an *UpstreamError the
// transport can map to a status code. A failure mid-stream returns the error
// after the chunks already emitted; emitted text is never retracted.
func (o *Orchestrator) StreamChat(ctx context.Context, req Request, emit func(string) error) error {
	answerMsgs, err := o.prepare(ctx, req)
	if err != nil {
		return err
	}

	visible, origin, err := splitStream(o.answerer.Stream(ctx, answerMsgs), emit)
	if err != nil {
		// Chunks already sent stay sent; record nothing for a broken
		// exchange.
		return upstream("answer-model", err)
	}

	o.record(ctx, req, origin, visible)
	o.sessions.Append(req.SessionKey, req.Question, visible)
	return nil
}

// Answer runs the same pipeline but drains the stream whole, without
// citation splitting, and returns the composed prompt with the response.
func (o *Orchestrator) Answer(ctx context.Context, req Request) (*PromptAnswer, error) {
	answerMsgs, err := o.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	var full strings.Builder
	for chunk, streamErr := range o.answerer.Stream(ctx, answerMsgs) {
		if streamErr != nil {
			return nil, upstream("answer-model", streamErr)
		}
		full.WriteString(chunk)
	}

	response := full.String()
	o.sessions.Append(req.SessionKey, req.Question, response)

	return &PromptAnswer{
		Prompt:   promptText(answerMsgs),
		Response: response,
	}, nil
}

// prepare runs the shared front half of the pipeline: language detection,
// history lookup, rephrasing, embedding, retrieval, and context assembly.
func (o *Orchestrator) prepare(ctx context.Context, req Request) ([]prompt.Message, error) {
	lang := language.Detect(req.Question)
	history := o.sessions.History(req.SessionKey)

	rephrased, err := o.rephraser.Complete(ctx, o.composer.Rephrase(req.Question, history))
	if err != nil {
		return nil, upstream("rephrase-model", err)
	}
	o.logger.Debug("question rephrased",
		"session", req.SessionKey,
		"language", lang,
	)

	embedding, err := o.embedder.Embed(ctx, rephrased)
	if err != nil {
		return nil, upstream("embedder", err)
	}

	hits, err := o.searcher.SearchAll(ctx, embedding, o.topK)
	if err != nil {
		return nil, upstream("search", err)
	}

	context, err := o.buildContext(ctx, req, hits, lang)
	if err != nil {
		return nil, err
	}

	return o.composer.Answer(req.Question, context, history), nil
}

// buildContext flattens retrieval hits into prompt context and, when any hit
// came from a case-details collection, appends the structured case record.
func (o *Orchestrator) buildContext(ctx context.Context, req Request, hits []retrieval.Hit, lang string) (string, error) {
	var b strings.Builder
	needCaseDetails := false
	for _, hit := range hits {
		fmt.Fprintf(&b, "Origin: %s\nContent: %s\n---", hit.Origin, hit.Content)
		if strings.Contains(hit.Collection, retrieval.CaseDetailsCollection) {
			needCaseDetails = true
		}
	}

	if needCaseDetails {
		c, err := o.cases.Get(ctx, req.CaseID, req.ActivityRecord)
		switch {
		case errors.Is(err, cases.ErrNotFound):
			o.logger.Warn("case details requested but not found",
				"case_id", req.CaseID,
				"activity_record", req.ActivityRecord,
			)
		case err != nil:
			return "", upstream("case-store", err)
		default:
			b.WriteString("\n\nCase Details:\n")
			b.WriteString(cases.Present(c, lang))
		}
	}

	return b.String(), nil
}

// record writes the finished exchange to the chat log. Sink failures must
// not fail a chat that already streamed, so they are logged and dropped.
func (o *Orchestrator) record(ctx context.Context, req Request, origin, answer string) {
	if o.sink == nil {
		return
	}

	sessionID, err := strconv.ParseInt(req.SessionKey, 10, 64)
	if err != nil {
		o.logger.Warn("session key is not numeric, skipping chat log",
			"session", req.SessionKey,
		)
		return
	}

	if err := o.sink.AppendExchange(ctx, sessionID, origin, req.Question, answer); err != nil {
		o.logger.Warn("chat log write failed",
			"session", req.SessionKey,
			"error", err,
		)
	}
}

// promptText renders composed messages back to one text blob for the
// prompt-inspection endpoint.
func promptText(msgs []prompt.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, m.Content)
	}
	return strings.Join(parts, "\n\n")
}
