// Package mapper builds the completion request for a snapshot and reconciles the
// model's per-field answers with the snapshot's field table.
package mapper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/template"
	"time"

	"formfill/internal/application/port/output"
	"formfill/internal/domain/entity"
	"formfill/internal/infrastructure/prompts"

	"github.com/sashabaranov/go-openai/jsonschema"
)

const defaultTimeout = 60 * time.Second

var ErrInvalidResponse = errors.New("completion response does not match schema")

// AnswerSchema describes one element of the expected answer array.
var AnswerSchema = jsonschema.Definition{
	Type: jsonschema.Object,
	Properties: map[string]jsonschema.Definition{
		"fieldId": {
			Type:        jsonschema.Integer,
			Description: "The fill-id of the field being answered.",
		},
		"value": {
			Type:        jsonschema.String,
			Description: `The value to write into the field, or "N/A".`,
		},
	},
	Required:             []string{"fieldId", "value"},
	AdditionalProperties: false,
}

type Config struct {
	SystemPrompt string
	UserTemplate string
	Timeout      time.Duration
}

type Mapper struct {
	systemPrompt string
	userTmpl     *template.Template
	timeout      time.Duration
	logger       output.LoggerPort
}

func New(cfg Config, logger output.LoggerPort) (*Mapper, error) {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = prompts.DefaultSystemPrompt
	}
	if cfg.UserTemplate == "" {
		cfg.UserTemplate = prompts.DefaultUserTemplate
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	tmpl, err := prompts.ParseUserTemplate(cfg.UserTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse user template: %w", err)
	}

	return &Mapper{
		systemPrompt: cfg.SystemPrompt,
		userTmpl:     tmpl,
		timeout:      cfg.Timeout,
		logger:       logger,
	}, nil
}

func (m *Mapper) BuildRequest(snap *entity.Snapshot, instruction string) (output.CompletionRequest, error) {
	user, err := prompts.GenerateUserPrompt(m.userTmpl, prompts.NewUserPromptData(snap, instruction))
	if err != nil {
		return output.CompletionRequest{}, fmt.Errorf("render user prompt: %w", err)
	}
	return output.CompletionRequest{
		System:      m.systemPrompt,
		User:        user,
		Schema:      AnswerSchema,
		Temperature: 0,
	}, nil
}

// RequestFill asks the backend for answers and joins them with the field table.
// Every failure is a *entity.FillError.
func (m *Mapper) RequestFill(
	ctx context.Context,
	backend output.CompletionPort,
	snap *entity.Snapshot,
	instruction string,
) ([]entity.Answer, []entity.FillPair, error) {
	if snap.Empty() {
		return nil, nil, entity.NewFillError(entity.FillErrNoFields, errors.New("no input fields found"))
	}
	if strings.TrimSpace(instruction) == "" {
		return nil, nil, entity.NewFillError(entity.FillErrNoPrompt, errors.New("instruction is empty"))
	}

	req, err := m.BuildRequest(snap, instruction)
	if err != nil {
		return nil, nil, entity.NewFillError(entity.FillErrCompletionFailed, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	raw, err := backend.Complete(callCtx, req)
	duration := time.Since(start)
	if err != nil {
		m.logger.Error("Completion failed",
			"provider", backend.Provider(),
			"duration_ms", duration.Milliseconds(),
			"error", err)
		return nil, nil, classifyCallError(ctx, callCtx, err)
	}

	m.logger.Info("Completion received",
		"provider", backend.Provider(),
		"duration_ms", duration.Milliseconds(),
		"response_len", len(raw))

	answers, err := ParseAnswers(raw)
	if err != nil {
		m.logger.Warn("Completion response rejected", "error", err)
		return nil, nil, entity.NewFillError(entity.FillErrInvalidResponse, err)
	}

	pairs := Join(snap.Fields, answers)
	if dropped := len(answers) - len(pairs); dropped > 0 {
		m.logger.Debug("Answers dropped during join",
			"answers", len(answers),
			"pairs", len(pairs),
			"dropped", dropped)
	}
	return answers, pairs, nil
}

func classifyCallError(parent, call context.Context, err error) error {
	switch {
	case parent.Err() != nil:
		return entity.NewFillError(entity.FillErrAborted, err)
	case errors.Is(call.Err(), context.DeadlineExceeded):
		return entity.NewFillError(entity.FillErrTimeout, err)
	default:
		return entity.NewFillError(entity.FillErrCompletionFailed, err)
	}
}

// ParseAnswers validates raw as a JSON array of {fieldId: integer, value: string}.
// Any violation rejects the whole response.
func ParseAnswers(raw string) ([]entity.Answer, error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after array", ErrInvalidResponse)
	}

	items, ok := doc.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: expected array, got %T", ErrInvalidResponse, doc)
	}

	answers := make([]entity.Answer, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: item %d is %T, not an object", ErrInvalidResponse, i, item)
		}

		num, ok := obj["fieldId"].(json.Number)
		if !ok {
			return nil, fmt.Errorf("%w: item %d fieldId is not a number", ErrInvalidResponse, i)
		}
		id, err := strconv.Atoi(num.String())
		if err != nil {
			return nil, fmt.Errorf("%w: item %d fieldId %q is not an integer", ErrInvalidResponse, i, num)
		}

		value, ok := obj["value"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: item %d value is not a string", ErrInvalidResponse, i)
		}

		answers = append(answers, entity.Answer{FieldID: id, Value: value})
	}
	return answers, nil
}

// Join maps answers onto fields. Unknown ids are dropped, the last answer for a
// repeated id wins, and unanswered fields are left out. Pairs follow field order.
func Join(fields []entity.Field, answers []entity.Answer) []entity.FillPair {
	known := make(map[int]struct{}, len(fields))
	for _, f := range fields {
		known[f.ID] = struct{}{}
	}

	latest := make(map[int]string, len(answers))
	for _, a := range answers {
		if _, ok := known[a.FieldID]; !ok {
			continue
		}
		latest[a.FieldID] = a.Value
	}

	pairs := make([]entity.FillPair, 0, len(latest))
	for _, f := range fields {
		value, ok := latest[f.ID]
		if !ok {
			continue
		}
		pairs = append(pairs, entity.FillPair{
			FieldID:    f.ID,
			Kind:       f.Kind,
			Selector:   f.Selector,
			Occurrence: f.Occurrence,
			Value:      value,
		})
	}
	return pairs
}
