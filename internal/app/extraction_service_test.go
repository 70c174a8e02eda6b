package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"judgment-rag/internal/ai/mock"
)

const doeVRoeJSON = `{
  "title": "Doe v. Roe",
  "court": "High Court",
  "date": "2023-04-01",
  "facts": "The petitioner challenged the contract.",
  "issues": ["Whether the contract was void"],
  "arguments": {"petitioner": "The contract was void.", "respondent": {"main": "The contract was valid."}},
  "ratio": "A contract entered freely binds the parties.",
  "holding": "Appeal dismissed.",
  "citations": ["Smith v. Jones (1999)"]
}`

func TestFieldExtractor_Extract(t *testing.T) {
	tests := []struct {
		name  string
		reply string
	}{
		{"raw json", doeVRoeJSON},
		{"json fence", "```json\n" + doeVRoeJSON + "\n```"},
		{"bare fence", "```\n" + doeVRoeJSON + "\n```"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := mock.NewMockCompleter(tt.reply)
			x := NewFieldExtractor(completer, ExtractionConfig{}, nil)

			record, err := x.Extract(context.Background(), "Case: Doe v. Roe... Held: appeal dismissed.")
			require.NoError(t, err)

			assert.Equal(t, "Doe v. Roe", record.Title)
			assert.Equal(t, "High Court", record.Court)
			assert.Contains(t, record.Holding, "dismissed")
			assert.Equal(t, []string{"Whether the contract was void"}, record.Issues)
			assert.Equal(t, []string{"Smith v. Jones (1999)"}, record.Citations)
			assert.Equal(t, "The contract was void.", record.Arguments.Petitioner)
			assert.Equal(t, map[string]any{"main": "The contract was valid."}, record.Arguments.Respondent)
			assert.Empty(t, record.ID)
			assert.Empty(t, record.OriginalText)
			assert.Equal(t, 1, completer.CallCount())
		})
	}
}

func TestFieldExtractor_SchemaViolations(t *testing.T) {
	tests := map[string]string{
		"prose":               "The judgment concerns Doe v. Roe.",
		"broken json":         `{"title": "Doe v. Roe",`,
		"array":               `[{"title": "Doe v. Roe"}]`,
		"unknown argument":    `{"arguments": {"petitioner": "a", "respondent": "b", "intervener": "c"}}`,
		"unknown field":       `{"title": "Doe v. Roe", "summary": "short"}`,
		"issues not strings":  `{"issues": [1, 2]}`,
		"citations as string": `{"citations": "Smith v. Jones"}`,
		"trailing data":       `{"title": "Doe v. Roe"} {"title": "again"}`,
		"upper case key":      `{"TITLE": "Doe v. Roe"}`,
		"mixed case key":      `{"Holding": "Appeal dismissed"}`,
		"duplicate key":       `{"title": "Doe v. Roe", "title": "Roe v. Doe"}`,
		"argument case":       `{"arguments": {"Petitioner": "a", "respondent": "b"}}`,
		"argument duplicate":  `{"arguments": {"petitioner": "a", "petitioner": "b"}}`,
	}
	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			x := NewFieldExtractor(mock.NewMockCompleter(reply), ExtractionConfig{}, nil)

			record, err := x.Extract(context.Background(), "Case: Doe v. Roe")
			require.ErrorIs(t, err, ErrSchemaViolation)
			assert.NotErrorIs(t, err, ErrCompletionService)
			assert.Nil(t, record)
		})
	}
}

func TestFieldExtractor_CompletionFailure(t *testing.T) {
	completer := &mock.MockCompleter{Err: errors.New("quota exceeded")}
	x := NewFieldExtractor(completer, ExtractionConfig{}, nil)

	_, err := x.Extract(context.Background(), "Case: Doe v. Roe")
	require.ErrorIs(t, err, ErrCompletionService)
	assert.NotErrorIs(t, err, ErrSchemaViolation)
	assert.Contains(t, err.Error(), "quota exceeded")
	assert.Equal(t, 1, completer.CallCount(), "no retry by default")
}

func TestFieldExtractor_RetriesCompletionFailures(t *testing.T) {
	calls := 0
	completer := &mock.MockCompleter{CompleteFunc: func(ctx context.Context, prompt string) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("timeout")
		}
		return doeVRoeJSON, nil
	}}
	x := NewFieldExtractor(completer, ExtractionConfig{MaxAttempts: 3, RetryDelay: time.Millisecond}, nil)

	record, err := x.Extract(context.Background(), "Case: Doe v. Roe")
	require.NoError(t, err)
	assert.Equal(t, "Doe v. Roe", record.Title)
	assert.Equal(t, 3, calls)
}

func TestFieldExtractor_EmptyText(t *testing.T) {
	completer := mock.NewMockCompleter(doeVRoeJSON)
	x := NewFieldExtractor(completer, ExtractionConfig{}, nil)

	_, err := x.Extract(context.Background(), " \n\t ")
	require.ErrorIs(t, err, ErrEmptyInput)
	assert.Equal(t, 0, completer.CallCount())
}

func TestFieldExtractor_TruncatesInputKeepingPrefix(t *testing.T) {
	completer := mock.NewMockCompleter(doeVRoeJSON)
	x := NewFieldExtractor(completer, ExtractionConfig{MaxChars: 20000}, nil)

	text := strings.Repeat("é", 20000) + "TAIL-MARKER"
	_, err := x.Extract(context.Background(), text)
	require.NoError(t, err)

	prompt := completer.LastPrompt()
	assert.Contains(t, prompt, strings.Repeat("é", 20000))
	assert.NotContains(t, prompt, "TAIL-MARKER")
}

func TestFieldExtractor_StableForSameText(t *testing.T) {
	x := NewFieldExtractor(mock.NewMockCompleter(doeVRoeJSON), ExtractionConfig{}, nil)

	first, err := x.Extract(context.Background(), "Case: Doe v. Roe")
	require.NoError(t, err)
	second, err := x.Extract(context.Background(), "Case: Doe v. Roe")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "abc", truncateRunes("abc", 5))
	assert.Equal(t, "ab", truncateRunes("abc", 2))
	assert.Equal(t, "日本", truncateRunes("日本語", 2))
	assert.Equal(t, "abc", truncateRunes("abc", 0))
}
