// Package aisvc summarizes teacher communications and generates study material with the OpenAI chat API.
package aisvc

import (
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/theepangnani/emai-dev-03-sub000/core"
	"github.com/theepangnani/emai-dev-03-sub000/core/communication"
	"github.com/theepangnani/emai-dev-03-sub000/core/studyguide"
)

// maxSourceChars bounds the text sent in a single prompt.
const maxSourceChars = 12000

var prompts = map[studyguide.Type]string{
	studyguide.TypeStudyGuide: "Write a structured study guide in markdown with headings, key concepts and a short summary.",
	studyguide.TypeQuiz: "Write a quiz of 10 multiple choice questions in markdown. " +
		"Give four options per question and list the answers at the end.",
	studyguide.TypeFlashcards: "Write 15 flashcards in markdown, one per line, formatted as `front | back`.",
}

type Client struct {
	api   *openai.Client
	model string
}

var (
	_ communication.Summarizer = (*Client)(nil)
	_ studyguide.Generator     = (*Client)(nil)
)

// NewClient returns nil when no API key is configured.
func NewClient(conf *core.Config) *Client {
	if conf.OpenAI.APIKey == "" {
		return nil
	}
	return newClient(openai.DefaultConfig(conf.OpenAI.APIKey), conf.OpenAI.Model)
}

func newClient(cfg openai.ClientConfig, model string) *Client {
	return &Client{api: openai.NewClientWithConfig(cfg), model: model}
}

func truncate(s string) string {
	if r := []rune(s); len(r) > maxSourceChars {
		return string(r[:maxSourceChars])
	}
	return s
}

func (c *Client) complete(ctx context.Context, system, content string, maxTokens int) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: truncate(content)},
		},
		MaxTokens:   maxTokens,
		Temperature: 0.3,
	})
	if err != nil {
		return "", errors.Wrap(err, "creating chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty chat completion")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	return c.complete(ctx,
		"Summarize this message from a teacher for a busy parent in at most three sentences. "+
			"Mention due dates and required actions.",
		text, 200)
}

func (c *Client) Generate(ctx context.Context, guideType studyguide.Type, title, source string) (string, error) {
	prompt, ok := prompts[guideType]
	if !ok {
		return "", errors.Errorf("unknown guide type %q", guideType)
	}
	return c.complete(ctx, prompt, fmt.Sprintf("Title: %s\n\n%s", title, source), 2000)
}
