package sentiment

import (
	"fmt"
	"strings"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// PunktSplitter splits English prose with the Punkt model, which knows
// abbreviations such as "Ltd." and "Rs." do not end a sentence.
type PunktSplitter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSplitter loads the bundled English model.
func NewPunktSplitter() (*PunktSplitter, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence model: %w", err)
	}
	return &PunktSplitter{tokenizer: tokenizer}, nil
}

// Split returns trimmed, non-empty sentences.
func (p *PunktSplitter) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := p.tokenizer.Tokenize(text)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := strings.TrimSpace(part.Text); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var _ SentenceSplitter = (*PunktSplitter)(nil)
