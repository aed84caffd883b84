package ratelimit

import (
	"fmt"
	"math"
	"unicode/utf8"

	"github.com/tidwall/gjson"
)

// TokenCalculator estimates the token cost of a request payload.
type TokenCalculator interface {
	Estimate(endpoint string, payload []byte) (int, error)
}

type TokenCalculatorFunc func(endpoint string, payload []byte) (int, error)

func (f TokenCalculatorFunc) Estimate(endpoint string, payload []byte) (int, error) {
	return f(endpoint, payload)
}

const (
	defaultCharsPerToken  = 4
	defaultMaxTokens      = 15
	defaultImageTokens    = 20
	tokensPerMessage      = 4
	tokensPerReplyPriming = 2
)

// ShapeCalculator estimates costs from the shape of a JSON payload:
//
//   - chat requests ("messages"): 4 tokens per message plus its content,
//     2 tokens priming the reply, plus n * max_tokens for the completion
//   - completion requests ("prompt"): the prompt plus n * max_tokens per prompt
//   - embedding requests ("input"): the input only
//
// Text is counted at CharsPerToken characters per token. Image parts of chat
// content count ImageTokens each. Other payloads fail with ErrUnknownCost.
// The zero value uses 4 characters per token, 15 completion tokens and 20
// tokens per image.
type ShapeCalculator struct {
	CharsPerToken    int
	DefaultMaxTokens int
	ImageTokens      int
}

func (c ShapeCalculator) charsPerToken() int {
	if c.CharsPerToken > 0 {
		return c.CharsPerToken
	}
	return defaultCharsPerToken
}

func (c ShapeCalculator) imageTokens() int {
	if c.ImageTokens > 0 {
		return c.ImageTokens
	}
	return defaultImageTokens
}

func (c ShapeCalculator) text(s string) int {
	n := c.charsPerToken()
	return (utf8.RuneCountInString(s) + n - 1) / n
}

// positive reads a numeric field, saturating at math.MaxInt. Missing, zero
// and negative values read as 0.
func positive(value gjson.Result) int {
	if f := value.Float(); f <= 0 {
		return 0
	} else if f >= math.MaxInt {
		return math.MaxInt
	}
	return int(value.Int())
}

func satAdd(a, b int) int {
	if a > math.MaxInt-b {
		return math.MaxInt
	}
	return a + b
}

func satMul(a, b int) int {
	if a != 0 && b > math.MaxInt/a {
		return math.MaxInt
	}
	return a * b
}

func (c ShapeCalculator) completion(doc gjson.Result) int {
	maxTokens := positive(doc.Get("max_tokens"))
	if maxTokens == 0 {
		maxTokens = c.DefaultMaxTokens
	}
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	n := max(positive(doc.Get("n")), 1)
	return satMul(n, maxTokens)
}

func (c ShapeCalculator) Estimate(_ string, payload []byte) (int, error) {
	if !gjson.ValidBytes(payload) {
		return 0, fmt.Errorf("%w: payload is not valid json", ErrUnknownCost)
	}
	doc := gjson.ParseBytes(payload)

	if messages := doc.Get("messages"); messages.Exists() {
		return c.chat(doc, messages)
	}
	if prompt := doc.Get("prompt"); prompt.Exists() {
		return c.prompt(doc, prompt)
	}
	if input := doc.Get("input"); input.Exists() {
		return c.strings(input, "input")
	}
	return 0, fmt.Errorf("%w: payload has no messages, prompt or input", ErrUnknownCost)
}

func (c ShapeCalculator) chat(doc, messages gjson.Result) (int, error) {
	if !messages.IsArray() {
		return 0, fmt.Errorf("%w: messages must be an array", ErrUnknownCost)
	}

	total := 0
	var err error
	messages.ForEach(func(_, msg gjson.Result) bool {
		if !msg.IsObject() {
			err = fmt.Errorf("%w: message must be an object", ErrUnknownCost)
			return false
		}
		total += tokensPerMessage
		msg.ForEach(func(key, value gjson.Result) bool {
			total += c.content(value)
			if key.String() == "name" {
				// a name replaces the role
				total--
			}
			return true
		})
		return true
	})
	if err != nil {
		return 0, err
	}
	return satAdd(total+tokensPerReplyPriming, c.completion(doc)), nil
}

func (c ShapeCalculator) content(value gjson.Result) int {
	switch {
	case value.Type == gjson.String:
		return c.text(value.String())
	case value.IsArray():
		total := 0
		value.ForEach(func(_, part gjson.Result) bool {
			switch {
			case part.Type == gjson.String:
				total += c.text(part.String())
			case part.Get("type").String() == "image_url" || part.Get("image_url").Exists():
				total += c.imageTokens()
			case part.Get("text").Exists():
				total += c.text(part.Get("text").String())
			}
			return true
		})
		return total
	default:
		return 0
	}
}

func (c ShapeCalculator) prompt(doc, prompt gjson.Result) (int, error) {
	switch {
	case prompt.Type == gjson.String:
		return satAdd(c.text(prompt.String()), c.completion(doc)), nil
	case prompt.IsArray():
		n, err := c.strings(prompt, "prompt")
		if err != nil {
			return 0, err
		}
		return satAdd(n, satMul(c.completion(doc), len(prompt.Array()))), nil
	default:
		return 0, fmt.Errorf("%w: prompt must be a string or a list of strings", ErrUnknownCost)
	}
}

func (c ShapeCalculator) strings(value gjson.Result, field string) (int, error) {
	if value.Type == gjson.String {
		return c.text(value.String()), nil
	}
	if !value.IsArray() {
		return 0, fmt.Errorf("%w: %s must be a string or a list of strings", ErrUnknownCost, field)
	}
	total := 0
	for _, item := range value.Array() {
		if item.Type != gjson.String {
			return 0, fmt.Errorf("%w: %s must be a string or a list of strings", ErrUnknownCost, field)
		}
		total += c.text(item.String())
	}
	return total, nil
}
