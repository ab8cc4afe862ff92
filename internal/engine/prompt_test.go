package engine

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nhle/mail-triage/internal/model"
)

func TestBuildPromptBodyPreference(t *testing.T) {
	msg := &model.Message{
		FromAddress: "a@example.com",
		Subject:     "hi",
		Snippet:     "snippet text",
		RawBody:     "raw body text",
		CleanBody:   "clean body text",
	}

	p := BuildPrompt(TaskTriage, msg, 1000)
	assert.Contains(t, p, "clean body text")
	assert.NotContains(t, p, "raw body text")

	msg.CleanBody = ""
	p = BuildPrompt(TaskTriage, msg, 1000)
	assert.Contains(t, p, "raw body text")

	msg.RawBody = ""
	p = BuildPrompt(TaskTriage, msg, 1000)
	assert.Contains(t, p, "snippet text")
}

func TestBuildPromptTruncatesBody(t *testing.T) {
	msg := &model.Message{
		FromAddress: "a@example.com",
		Subject:     "hi",
		CleanBody:   strings.Repeat("x", 500),
	}

	p := BuildPrompt(TaskTriage, msg, 100)

	assert.Contains(t, p, strings.Repeat("x", 100))
	assert.NotContains(t, p, strings.Repeat("x", 101))
}

func TestBuildPromptTriageListsAllEnums(t *testing.T) {
	msg := &model.Message{FromAddress: "a@b.c", Subject: "s", CleanBody: "b"}

	p := BuildPrompt(TaskTriage, msg, 1000)

	for _, c := range model.Categories {
		assert.Contains(t, p, string(c))
	}
	for _, u := range model.Urgencies {
		assert.Contains(t, p, string(u))
	}
	assert.Contains(t, p, "a@b.c")
	assert.Contains(t, p, "Subject: s")
}

func TestBuildPromptSummary(t *testing.T) {
	msg := &model.Message{FromAddress: "a@b.c", Subject: "s", CleanBody: "long body"}

	p := BuildPrompt(TaskSummarize, msg, 1000)

	assert.Contains(t, p, "key_points")
	assert.Contains(t, p, "long body")
	assert.NotContains(t, p, "reply_draft")
}
