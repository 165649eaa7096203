//go:build onnx

package config

import (
	"github.com/becomeliminal/expmem/memory"
	"github.com/becomeliminal/expmem/memory/embedder/onnx"
)

func init() {
	newONNXEmbedder = func(c EmbedderConfig) (memory.Embedder, func() error, error) {
		e, err := onnx.New(onnx.Config{
			LibraryPath:   c.LibraryPath,
			ModelPath:     c.ModelPath,
			TokenizerPath: c.TokenizerPath,
			Dimensions:    c.Dimensions,
		})
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil
	}
}
