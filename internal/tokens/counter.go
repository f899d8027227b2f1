// Package tokens counts and truncates prompt text against a model's tokenizer.
package tokens

import (
	"strings"
	"unicode/utf8"

	"github.com/tiktoken-go/tokenizer"
)

// charsPerToken is the estimate used when no tokenizer is available.
const charsPerToken = 4

// Counter counts tokens for one model using tiktoken.
type Counter struct {
	model string
	codec tokenizer.Codec
}

// NewCounter returns a counter for model. Unknown models fall back to the
// o200k_base encoding; if no codec can be loaded the counter estimates.
func NewCounter(model string) *Counter {
	c := &Counter{model: model}

	codec, err := tokenizer.ForModel(mapModelName(model))
	if err != nil {
		codec, err = tokenizer.Get(modelToEncoding(model))
	}
	if err == nil {
		c.codec = codec
	}
	return c
}

// Model returns the model the counter was built for.
func (c *Counter) Model() string {
	return c.model
}

// Estimated reports whether counts are character estimates rather than tiktoken counts.
func (c *Counter) Estimated() bool {
	return c.codec == nil
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if c.codec == nil {
		return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
	}
	ids, _, err := c.codec.Encode(text)
	if err != nil {
		return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
	}
	return len(ids)
}

// Truncate cuts text to at most max tokens. It reports whether text was cut.
// A max of zero or less disables truncation.
func (c *Counter) Truncate(text string, max int) (string, bool) {
	if max <= 0 || text == "" {
		return text, false
	}

	if c.codec != nil {
		ids, _, err := c.codec.Encode(text)
		if err == nil {
			if len(ids) <= max {
				return text, false
			}
			head, err := c.codec.Decode(ids[:max])
			if err == nil {
				// A cut inside a multi-byte rune leaves an invalid tail.
				return strings.ToValidUTF8(head, ""), true
			}
		}
	}

	limit := max * charsPerToken
	if utf8.RuneCountInString(text) <= limit {
		return text, false
	}
	return string([]rune(text)[:limit]), true
}

// mapModelName maps a model string to tokenizer.Model.
func mapModelName(model string) tokenizer.Model {
	model = strings.ToLower(model)

	switch {
	case model == "gpt-5":
		return tokenizer.GPT5
	case model == "gpt-5-mini" || strings.HasPrefix(model, "gpt-5-mini-"):
		return tokenizer.GPT5Mini
	case model == "gpt-5-nano" || strings.HasPrefix(model, "gpt-5-nano-"):
		return tokenizer.GPT5Nano
	case strings.HasPrefix(model, "gpt-5"):
		return tokenizer.GPT5
	case strings.HasPrefix(model, "gpt-4.1") || strings.HasPrefix(model, "gpt-41"):
		return tokenizer.GPT41
	case strings.HasPrefix(model, "gpt-4o"):
		return tokenizer.GPT4o
	case model == "o3" || strings.HasPrefix(model, "o3-"):
		if strings.Contains(model, "mini") {
			return tokenizer.O3Mini
		}
		return tokenizer.O3
	case strings.HasPrefix(model, "o4"):
		return tokenizer.O4Mini
	case strings.HasPrefix(model, "gpt-4"):
		return tokenizer.GPT4
	case strings.HasPrefix(model, "gpt-35") || strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.GPT35Turbo
	default:
		return tokenizer.Model(model)
	}
}

// modelToEncoding picks the encoding for models tiktoken does not know,
// such as Azure deployment names.
func modelToEncoding(model string) tokenizer.Encoding {
	model = strings.ToLower(model)

	switch {
	case strings.HasPrefix(model, "gpt-4o"), strings.HasPrefix(model, "gpt-4.1"), strings.HasPrefix(model, "gpt-5"):
		return tokenizer.O200kBase
	case strings.HasPrefix(model, "gpt-4"), strings.HasPrefix(model, "gpt-35"), strings.HasPrefix(model, "gpt-3.5"):
		return tokenizer.Cl100kBase
	default:
		return tokenizer.O200kBase
	}
}
