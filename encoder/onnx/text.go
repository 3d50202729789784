package onnx

import (
	"context"
	"errors"
	"fmt"

	"github.com/daulet/tokenizers"
	onnxruntime "github.com/yalue/onnxruntime_go"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

// TextEncoder runs a sentence-transformer: tokenize, infer, mean-pool over
// the attention mask and L2-normalize.
type TextEncoder struct {
	tk        *tokenizers.Tokenizer
	sess      *session
	dim       int
	maxTokens int
}

var _ encoder.TextEncoder = (*TextEncoder)(nil)

func newTextEncoder(cfg Config, device encoder.Device) (*TextEncoder, error) {
	tk, err := tokenizers.FromFile(cfg.TokenizerPath)
	if err != nil {
		return nil, fmt.Errorf("onnx: load tokenizer: %w", err)
	}
	sess, err := openSession(cfg.TextModelPath, device, cfg.Threads, "last_hidden_state", "token_embeddings")
	if err != nil {
		_ = tk.Close()
		return nil, err
	}
	return &TextEncoder{tk: tk, sess: sess, dim: cfg.TextDim, maxTokens: cfg.MaxTokens}, nil
}

// Dim implements encoder.TextEncoder.
func (e *TextEncoder) Dim() int { return e.dim }

// EncodeText implements encoder.TextEncoder.
func (e *TextEncoder) EncodeText(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	enc := e.tk.EncodeWithOptions(text, true,
		tokenizers.WithReturnAttentionMask(),
		tokenizers.WithReturnTypeIDs(),
	)
	ids, mask, types := widen(enc.IDs), widen(enc.AttentionMask), widen(enc.TypeIDs)
	ids, mask, types = truncate(ids, e.maxTokens), truncate(mask, e.maxTokens), truncate(types, e.maxTokens)
	if len(ids) == 0 {
		return nil, errors.New("onnx: tokenizer produced no tokens")
	}
	if len(types) != len(ids) {
		types = make([]int64, len(ids))
	}
	if len(mask) != len(ids) {
		mask = make([]int64, len(ids))
		for i := range mask {
			mask[i] = 1
		}
	}

	seq := int64(len(ids))
	shape := onnxruntime.NewShape(1, seq)
	values := map[string]onnxruntime.Value{}
	var owned []onnxruntime.Value
	defer func() {
		for _, v := range owned {
			_ = v.Destroy()
		}
	}()
	for name, data := range map[string][]int64{
		"input_ids":      ids,
		"attention_mask": mask,
		"token_type_ids": types,
	} {
		if !e.sess.has(name) {
			continue
		}
		t, err := int64Tensor(shape, data)
		if err != nil {
			return nil, fmt.Errorf("onnx: %s tensor: %w", name, err)
		}
		owned = append(owned, t)
		values[name] = t
	}

	out, outShape, err := e.sess.run(values)
	if err != nil {
		return nil, err
	}
	var pooled []float32
	switch len(outShape) {
	case 3: // [1, seq, hidden]
		pooled, err = vector.MeanPool(out, int(outShape[1]), int(outShape[2]), mask)
	case 2: // [1, hidden], already pooled
		pooled = out
	default:
		err = fmt.Errorf("onnx: unexpected text output shape %v", outShape)
	}
	if err != nil {
		return nil, err
	}
	if len(pooled) != e.dim {
		return nil, fmt.Errorf("onnx: text embedding has %d dims, want %d", len(pooled), e.dim)
	}
	return vector.Normalize(pooled)
}

// Close releases the session and tokenizer.
func (e *TextEncoder) Close() error {
	err := e.sess.close()
	if e.tk != nil {
		err = errors.Join(err, e.tk.Close())
		e.tk = nil
	}
	return err
}

func widen(v []uint32) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}

// truncate shortens s to n entries, keeping the final entry so the
// closing [SEP] token survives.
func truncate(s []int64, n int) []int64 {
	if n < 1 || len(s) <= n {
		return s
	}
	out := make([]int64, n)
	copy(out, s[:n-1])
	out[n-1] = s[len(s)-1]
	return out
}
