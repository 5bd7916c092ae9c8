package generator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"golang.org/x/net/html"
)

var fenceParser = goldmark.DefaultParser()

var blockTags = map[string]bool{
	"br": true, "p": true, "div": true, "li": true, "ul": true, "ol": true,
	"blockquote": true, "pre": true, "tr": true, "td": true, "th": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

type completionEnvelope struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
			Refusal string  `json:"refusal"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// ParseCompletion turns a chat completion body into a GenerationResult. Only
// the requested fields are kept; a requested field that is absent or not a
// string is simply left out.
func ParseCompletion(body []byte, fields []string) GenerationResult {
	var env completionEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return failure(ReasonMalformedResponse, fmt.Sprintf("decode response: %v", err))
	}
	if env.Error != nil {
		msg := env.Error.Message
		if msg == "" {
			msg = env.Error.Type
		}
		return failure(ReasonProviderError, msg)
	}
	if len(env.Choices) == 0 || env.Choices[0].Message.Content == nil {
		if len(env.Choices) > 0 && env.Choices[0].Message.Refusal != "" {
			return failure(ReasonMalformedResponse, "model refused: "+env.Choices[0].Message.Refusal)
		}
		return failure(ReasonMalformedResponse, "response has no choices[0].message.content")
	}

	content := *env.Choices[0].Message.Content
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(stripFences(content)), &obj); err != nil || obj == nil {
		return GenerationResult{
			Raw:     content,
			Reason:  ReasonMalformedResponse,
			Message: "content is not a JSON object",
		}
	}

	res := GenerationResult{Fields: make(map[string]string, len(fields)), Raw: content}
	for _, name := range fields {
		v, ok := obj[name]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			log.Debug().Str("field", name).Msg("Ignoring non-string field value")
			continue
		}
		res.Fields[name] = s
	}
	return res
}

// stripFences unwraps a response that is a single fenced code block
// (```json ... ```), which some models send even in JSON mode.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") && !strings.HasPrefix(text, "~~~") {
		return text
	}
	src := []byte(text)
	doc := fenceParser.Parse(gmtext.NewReader(src))
	block, ok := doc.FirstChild().(*ast.FencedCodeBlock)
	if !ok || block.NextSibling() != nil {
		return text
	}
	var b strings.Builder
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(src))
	}
	return strings.TrimSpace(b.String())
}

// StripMarkup removes HTML tags from model text and collapses whitespace.
// Script and style content is dropped; everything else, including Markdown
// punctuation, is kept as written.
func StripMarkup(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return strings.Join(strings.Fields(htmlText(s)), " ")
}

func htmlText(src string) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	skip := 0
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			n := string(name)
			if tt == html.StartTagToken && (n == "script" || n == "style") {
				skip++
			}
			if blockTags[n] {
				b.WriteByte(' ')
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			n := string(name)
			if (n == "script" || n == "style") && skip > 0 {
				skip--
			}
			if blockTags[n] {
				b.WriteByte(' ')
			}
		case html.TextToken:
			if skip == 0 {
				b.Write(z.Text())
			}
		}
	}
}
