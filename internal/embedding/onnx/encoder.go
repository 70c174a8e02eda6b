package onnx

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// ErrEncoderClosed is returned by Embed once Close has been called.
var ErrEncoderClosed = errors.New("onnx encoder closed")

type Config struct {
	ModelPath     string
	VocabPath     string
	SharedLibPath string
	MaxTokens     int
	Dimension     int
	// Version pins the embedding space, e.g. "all-MiniLM-L6-v2@v1".
	Version string
}

// Encoder runs a sentence-transformers ONNX export locally: WordPiece
// tokenisation, transformer forward pass, mean pooling and L2 normalisation.
type Encoder struct {
	mu  sync.Mutex
	cfg Config

	tokenizer  *WordPiece
	session    *ort.DynamicAdvancedSession
	inputNames []string
	pooled     bool
	inited     bool
	closed     bool
}

// NewEncoder creates an encoder that lazily loads the model and vocabulary on
// first use.
func NewEncoder(cfg Config) *Encoder {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 256
	}
	if cfg.Dimension <= 0 {
		cfg.Dimension = 384
	}
	return &Encoder{cfg: cfg}
}

func (e *Encoder) Dimension() int {
	return e.cfg.Dimension
}

func (e *Encoder) ModelVersion() string {
	return e.cfg.Version
}

// initOnce loads the ONNX shared library, environment, vocabulary and session.
func (e *Encoder) initOnce() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return ErrEncoderClosed
	}
	if e.inited {
		return nil
	}

	if !ort.IsInitialized() {
		if e.cfg.SharedLibPath != "" {
			ort.SetSharedLibraryPath(e.cfg.SharedLibPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return fmt.Errorf("onnx init environment: %w", err)
		}
	}

	vocab, err := LoadVocab(e.cfg.VocabPath)
	if err != nil {
		return fmt.Errorf("load vocab: %w", err)
	}
	tokenizer, err := NewWordPiece(vocab, e.cfg.MaxTokens)
	if err != nil {
		return err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(e.cfg.ModelPath)
	if err != nil {
		return fmt.Errorf("onnx get input/output info: %w", err)
	}
	if len(inputs) == 0 || len(outputs) == 0 {
		return fmt.Errorf("onnx model has no inputs or outputs")
	}

	inputNames := make([]string, len(inputs))
	for i := range inputs {
		switch inputs[i].Name {
		case "input_ids", "attention_mask", "token_type_ids":
			inputNames[i] = inputs[i].Name
		default:
			return fmt.Errorf("onnx model has unsupported input %q", inputs[i].Name)
		}
	}

	// Prefer token embeddings; some exports also ship a pooled output.
	output := outputs[0]
	for _, o := range outputs {
		if o.Name == "last_hidden_state" || o.Name == "token_embeddings" {
			output = o
			break
		}
	}

	session, err := ort.NewDynamicAdvancedSession(e.cfg.ModelPath, inputNames, []string{output.Name}, nil)
	if err != nil {
		return fmt.Errorf("onnx new session: %w", err)
	}

	e.tokenizer = tokenizer
	e.session = session
	e.inputNames = inputNames
	e.pooled = len(output.Dimensions) == 2
	e.inited = true
	return nil
}

// Embed tokenises text, runs the model and returns a unit-length vector.
func (e *Encoder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := e.initOnce(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask, typeIDs := e.tokenizer.Encode(text)
	seqLen := int64(len(ids))
	shape := ort.NewShape(1, seqLen)

	byName := map[string][]int64{
		"input_ids":      ids,
		"attention_mask": mask,
		"token_type_ids": typeIDs,
	}
	inputs := make([]ort.Value, 0, len(e.inputNames))
	defer func() {
		for _, v := range inputs {
			_ = v.Destroy()
		}
	}()
	for _, name := range e.inputNames {
		t, err := ort.NewTensor(shape, byName[name])
		if err != nil {
			return nil, fmt.Errorf("onnx new input tensor %s: %w", name, err)
		}
		inputs = append(inputs, t)
	}

	outShape := ort.NewShape(1, seqLen, int64(e.cfg.Dimension))
	if e.pooled {
		outShape = ort.NewShape(1, int64(e.cfg.Dimension))
	}
	output, err := ort.NewEmptyTensor[float32](outShape)
	if err != nil {
		return nil, fmt.Errorf("onnx new output tensor: %w", err)
	}
	defer output.Destroy()

	e.mu.Lock()
	if e.closed || e.session == nil {
		e.mu.Unlock()
		return nil, ErrEncoderClosed
	}
	err = e.session.Run(inputs, []ort.Value{output})
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	var vec []float32
	if e.pooled {
		vec = append([]float32(nil), output.GetData()...)
	} else {
		vec = meanPool(output.GetData(), mask, int(seqLen), e.cfg.Dimension)
	}
	l2Normalize(vec)
	return vec, nil
}

func (e *Encoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.session == nil {
		return nil
	}
	err := e.session.Destroy()
	e.session = nil
	e.inited = false
	return err
}

// meanPool averages token embeddings over positions where mask is set.
func meanPool(hidden []float32, mask []int64, seqLen, dim int) []float32 {
	out := make([]float32, dim)
	var count float32
	for t := 0; t < seqLen && t < len(mask); t++ {
		if mask[t] == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for i, v := range row {
			out[i] += v
		}
		count++
	}
	if count == 0 {
		return out
	}
	for i := range out {
		out[i] /= count
	}
	return out
}

func l2Normalize(vec []float32) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
}
