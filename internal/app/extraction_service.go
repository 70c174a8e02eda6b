package app

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"judgment-rag/internal/ai"
	"judgment-rag/internal/model"
)

const extractionPrompt = `Act as a legal domain expert. Analyze the following judgment text and extract its key details.
Respond with a single JSON object containing exactly these fields:
- "title": the case title (string)
- "court": the court that delivered the judgment (string)
- "date": the date of the judgment (string)
- "facts": a concise summary of the facts (string)
- "issues": the legal issues framed (array of strings)
- "arguments": an object with exactly two keys, "petitioner" and "respondent", holding each side's arguments
- "ratio": the ratio decidendi (string)
- "holding": the final holding or order (string)
- "citations": the cases and statutes cited (array of strings)

Return raw JSON only. Do not use markdown blocks.

TEXT TO ANALYZE:
{{text}}`

var fenceStripper = strings.NewReplacer("```json", "", "```", "")

var (
	extractionKeys = map[string]bool{
		"title": true, "court": true, "date": true, "facts": true, "issues": true,
		"arguments": true, "ratio": true, "holding": true, "citations": true,
	}
	argumentKeys = map[string]bool{"petitioner": true, "respondent": true}
)

type ExtractionConfig struct {
	MaxChars    int
	MaxAttempts int
	RetryDelay  time.Duration
}

// FieldExtractor asks the completion service for the structured fields of a
// judgment and enforces the JSON contract on the reply.
type FieldExtractor struct {
	completer ai.Completer
	cfg       ExtractionConfig
	logger    *slog.Logger
}

func NewFieldExtractor(completer ai.Completer, cfg ExtractionConfig, logger *slog.Logger) *FieldExtractor {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 20000
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FieldExtractor{
		completer: completer,
		cfg:       cfg,
		logger:    logger.With("component", "field_extractor"),
	}
}

// extractedFields mirrors the JSON contract. Unknown keys anywhere in the
// object, including inside arguments, are rejected. Keys must match exactly
// and appear at most once; see checkKeys.
type extractedFields struct {
	Title     string          `json:"title"`
	Court     string          `json:"court"`
	Date      string          `json:"date"`
	Facts     string          `json:"facts"`
	Issues    []string        `json:"issues"`
	Arguments model.Arguments `json:"arguments"`
	Ratio     string          `json:"ratio"`
	Holding   string          `json:"holding"`
	Citations []string        `json:"citations"`
}

// Extract returns a record without identifier or original text.
func (e *FieldExtractor) Extract(ctx context.Context, rawText string) (*model.JudgmentRecord, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, fmt.Errorf("%w: no text to analyze", ErrEmptyInput)
	}

	prompt := strings.Replace(extractionPrompt, "{{text}}", truncateRunes(rawText, e.cfg.MaxChars), 1)

	var reply string
	err := retryWithBackoff(ctx, e.logger, e.cfg.MaxAttempts, e.cfg.RetryDelay, func() error {
		var cerr error
		reply, cerr = e.completer.Complete(ctx, prompt)
		return cerr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionService, err)
	}

	fields, err := parseExtraction(reply)
	if err != nil {
		e.logger.Warn("extraction reply rejected", "error", err, "reply_chars", len(reply))
		return nil, err
	}

	return &model.JudgmentRecord{
		Title:     fields.Title,
		Court:     fields.Court,
		Date:      fields.Date,
		Facts:     fields.Facts,
		Issues:    fields.Issues,
		Arguments: fields.Arguments,
		Ratio:     fields.Ratio,
		Holding:   fields.Holding,
		Citations: fields.Citations,
	}, nil
}

func parseExtraction(reply string) (*extractedFields, error) {
	cleaned := strings.TrimSpace(fenceStripper.Replace(reply))
	if !strings.HasPrefix(cleaned, "{") {
		return nil, fmt.Errorf("%w: reply is not a JSON object", ErrSchemaViolation)
	}

	if err := checkKeys([]byte(cleaned), extractionKeys, true); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(cleaned)))
	dec.DisallowUnknownFields()

	var fields extractedFields
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaViolation, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after JSON object", ErrSchemaViolation)
	}
	return &fields, nil
}

// checkKeys walks the first JSON object in data and rejects keys that are not
// in allowed, including case variants, and keys that repeat. encoding/json
// matches field names case-insensitively and keeps the last duplicate.
func checkKeys(data []byte, allowed map[string]bool, top bool) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected JSON object")
	}

	seen := make(map[string]bool, len(allowed))
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := tok.(string)
		if !allowed[key] {
			return fmt.Errorf("unexpected key %q", key)
		}
		if seen[key] {
			return fmt.Errorf("duplicate key %q", key)
		}
		seen[key] = true

		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return err
		}
		if top && key == "arguments" && bytes.HasPrefix(bytes.TrimSpace(value), []byte("{")) {
			if err := checkKeys(value, argumentKeys, false); err != nil {
				return fmt.Errorf("arguments: %w", err)
			}
		}
	}
	return nil
}

// truncateRunes keeps the first limit characters of s.
func truncateRunes(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}
