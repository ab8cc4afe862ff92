package engine

import (
	"fmt"
	"strings"

	"github.com/nhle/mail-triage/internal/model"
)

// Task selects which instruction template a prompt is built from.
type Task string

const (
	TaskTriage    Task = "triage"
	TaskSummarize Task = "summarize"
)

// The instruction templates are an external contract with the model:
// changing them changes model behavior. Treat them as versioned
// configuration, not logic.
const triageTemplate = `You are an email triage assistant for a customer support team.
Classify the email below and draft a short, polite reply.

Respond with a single JSON object and nothing else, using exactly these fields:
{
  "category": one of %s,
  "urgency": one of %s,
  "confidence": a number between 0 and 1,
  "reply_draft": the reply text, written in the sender's language
}

Rules:
- Pick exactly one category. Use SPAM_OTHER for anything that is not a
  genuine customer request.
- The reply must not promise anything beyond acknowledging the request.
- Do not invent customer or account details.

Email from: %s
Subject: %s

%s`

const summaryTemplate = `Summarize the email below for a support agent who has no time to read it.

Respond with a single JSON object and nothing else, using exactly these fields:
{
  "title": at most 3 words,
  "summary": 1 to 3 sentences,
  "key_points": an array of 0 to 5 short strings
}

Email from: %s
Subject: %s

%s`

// BuildPrompt renders the instruction template for the given task with the
// message's best available body truncated to budget characters. Body
// preference: cleaned body, then raw extracted body, then the source
// snippet.
func BuildPrompt(task Task, msg *model.Message, budget int) string {
	body := msg.CleanBody
	if body == "" {
		body = msg.RawBody
	}
	if body == "" {
		body = msg.Snippet
	}
	body = truncate(body, budget)

	switch task {
	case TaskSummarize:
		return fmt.Sprintf(summaryTemplate, msg.FromAddress, msg.Subject, body)
	default:
		return fmt.Sprintf(triageTemplate,
			enumList(model.Categories),
			enumList(model.Urgencies),
			msg.FromAddress, msg.Subject, body,
		)
	}
}

// truncate cuts s to at most budget characters without splitting a rune.
func truncate(s string, budget int) string {
	if budget <= 0 || len(s) <= budget {
		return s
	}
	runes := []rune(s)
	if len(runes) <= budget {
		return s
	}
	return string(runes[:budget])
}

// enumList renders a closed enum set as a pipe-separated list for the
// instruction template.
func enumList[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, " | ")
}
