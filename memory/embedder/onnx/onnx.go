//go:build onnx

// Package onnx embeds text with a sentence-transformer model (all-MiniLM-L6-v2
// by default) through ONNX Runtime. Build with -tags onnx.
package onnx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/becomeliminal/expmem/memory"
)

const (
	defaultDimensions = 384
	defaultMaxTokens  = 128

	clsToken = 101
	sepToken = 102
	unkToken = 100
)

// Config configures the ONNX embedder.
type Config struct {
	// LibraryPath locates libonnxruntime. Empty uses the loader's default.
	LibraryPath string

	// ModelPath is the path to the ONNX model file.
	ModelPath string

	// TokenizerPath is the path to the tokenizer.json file.
	TokenizerPath string

	// Dimensions is the embedding vector size (default: 384).
	Dimensions int

	// MaxTokens is the padded sequence length including [CLS] and [SEP].
	MaxTokens int
}

// ONNXEmbedder generates embeddings using ONNX Runtime.
type ONNXEmbedder struct {
	mu         sync.Mutex // sessions are not safe for concurrent Run
	session    *ort.DynamicAdvancedSession
	vocab      wordPiece
	dimensions int
	maxTokens  int
}

var _ memory.Embedder = (*ONNXEmbedder)(nil)

var initOnce sync.Once
var initErr error

// New loads the model and tokenizer.
func New(cfg Config) (*ONNXEmbedder, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("onnx: ModelPath is required")
	}
	if cfg.TokenizerPath == "" {
		return nil, errors.New("onnx: TokenizerPath is required")
	}
	if cfg.Dimensions <= 0 {
		cfg.Dimensions = defaultDimensions
	}
	if cfg.MaxTokens < 3 {
		cfg.MaxTokens = defaultMaxTokens
	}

	initOnce.Do(func() {
		if cfg.LibraryPath != "" {
			ort.SetSharedLibraryPath(cfg.LibraryPath)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("initialize onnx runtime: %w", initErr)
	}

	vocab, err := loadVocab(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}

	session, err := ort.NewDynamicAdvancedSession(cfg.ModelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"last_hidden_state"},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	log.WithFields(log.Fields{
		"model":      cfg.ModelPath,
		"dimensions": cfg.Dimensions,
		"vocab":      len(vocab),
	}).Info("[ONNX] Embedder ready")

	return &ONNXEmbedder{
		session:    session,
		vocab:      vocab,
		dimensions: cfg.Dimensions,
		maxTokens:  cfg.MaxTokens,
	}, nil
}

// Embed runs the model and mean-pools the attended token states.
func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ids, mask := e.encode(text)
	shape := ort.NewShape(1, int64(e.maxTokens))

	idsTensor, err := ort.NewTensor(shape, ids)
	if err != nil {
		return nil, fmt.Errorf("input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()

	maskTensor, err := ort.NewTensor(shape, mask)
	if err != nil {
		return nil, fmt.Errorf("attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	typesTensor, err := ort.NewTensor(shape, make([]int64, e.maxTokens))
	if err != nil {
		return nil, fmt.Errorf("token_type_ids tensor: %w", err)
	}
	defer typesTensor.Destroy()

	outputs := []ort.Value{nil}
	e.mu.Lock()
	err = e.session.Run([]ort.Value{idsTensor, maskTensor, typesTensor}, outputs)
	e.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	defer func() {
		for _, out := range outputs {
			if out != nil {
				out.Destroy()
			}
		}
	}()

	hidden, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, errors.New("onnx: unexpected output tensor type")
	}

	vec, err := pool(hidden.GetData(), hidden.GetShape(), mask, e.dimensions)
	if err != nil {
		return nil, err
	}
	return normalize(vec), nil
}

// Dimensions returns the embedding vector size.
func (e *ONNXEmbedder) Dimensions() int {
	return e.dimensions
}

// Close releases ONNX resources.
func (e *ONNXEmbedder) Close() error {
	if e.session != nil {
		return e.session.Destroy()
	}
	return nil
}

// encode produces padded input ids and the attention mask.
func (e *ONNXEmbedder) encode(text string) ([]int64, []int64) {
	ids := make([]int64, e.maxTokens)
	mask := make([]int64, e.maxTokens)

	tokens := e.vocab.tokenize(text)
	if len(tokens) > e.maxTokens-2 {
		tokens = tokens[:e.maxTokens-2]
	}

	ids[0], mask[0] = clsToken, 1
	for i, tok := range tokens {
		ids[i+1], mask[i+1] = tok, 1
	}
	end := len(tokens) + 1
	ids[end], mask[end] = sepToken, 1
	return ids, mask
}

// pool accepts either an already pooled [1, dims] output or a
// [1, seq, dims] hidden state that is averaged over attended positions.
func pool(data []float32, shape ort.Shape, mask []int64, dims int) ([]float32, error) {
	out := make([]float32, dims)
	switch len(shape) {
	case 2:
		if len(data) < dims {
			return nil, fmt.Errorf("onnx: output has %d values, want %d", len(data), dims)
		}
		copy(out, data[:dims])
		return out, nil
	case 3:
		if shape[0] != 1 || shape[2] != int64(dims) {
			return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
		}
		seq := int(shape[1])
		var attended float32
		for i := 0; i < seq && i < len(mask); i++ {
			if mask[i] == 0 {
				continue
			}
			attended++
			row := data[i*dims : (i+1)*dims]
			for j, v := range row {
				out[j] += v
			}
		}
		if attended > 0 {
			for j := range out {
				out[j] /= attended
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("onnx: unexpected output shape %v", shape)
	}
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := float32(math.Sqrt(sum))
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

// wordPiece maps vocabulary entries to ids.
type wordPiece map[string]int

func loadVocab(path string) (wordPiece, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc struct {
		Model struct {
			Vocab map[string]int `json:"vocab"`
		} `json:"model"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer has no vocabulary")
	}
	return wordPiece(doc.Model.Vocab), nil
}

// tokenize lowercases, strips edge punctuation and splits each word greedily
// into the longest known pieces.
func (v wordPiece) tokenize(text string) []int64 {
	var out []int64
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]{}")
		if word == "" {
			continue
		}
		if id, ok := v[word]; ok {
			out = append(out, int64(id))
			continue
		}
		for start := 0; start < len(word); {
			end := len(word)
			for ; end > start; end-- {
				piece := word[start:end]
				if start > 0 {
					piece = "##" + piece
				}
				if id, ok := v[piece]; ok {
					out = append(out, int64(id))
					break
				}
			}
			if end == start {
				out = append(out, unkToken)
				start++
				continue
			}
			start = end
		}
	}
	return out
}
