package mail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanDropsQuotedLines(t *testing.T) {
	in := "Hello\n> earlier message\n> more quoting\nworld"

	assert.Equal(t, "Hello\nworld", Clean(in))
}

func TestCleanTruncatesAtReplyAttribution(t *testing.T) {
	in := "Thanks, that works for me!\n\n" +
		"On Mon, Jan 2, 2026 at 3:04 PM Jane Doe <jane@example.com> wrote:\n" +
		"> original text here"

	assert.Equal(t, "Thanks, that works for me!", Clean(in))
}

func TestCleanTruncatesAtForwardHeader(t *testing.T) {
	in := "Please see the thread below.\n\n" +
		"From: Bob <bob@example.com>\n" +
		"Sent: Tuesday\n" +
		"Subject: account question\n" +
		"forwarded content"

	assert.Equal(t, "Please see the thread below.", Clean(in))
}

func TestCleanTruncatesAtOriginalMessageSeparator(t *testing.T) {
	in := "Short answer: yes.\n\n----- Original Message -----\nold stuff"

	assert.Equal(t, "Short answer: yes.", Clean(in))
}

func TestCleanTruncatesAtHorizontalRule(t *testing.T) {
	in := "The gym closes at 10pm.\n\n____________\npromo footer text"

	assert.Equal(t, "The gym closes at 10pm.", Clean(in))
}

func TestCleanStripsSignature(t *testing.T) {
	in := "Can you cancel my membership?\n-- \nJohn Doe\nAcme Corp"

	assert.Equal(t, "Can you cancel my membership?", Clean(in))
}

func TestCleanEarliestMarkerWins(t *testing.T) {
	in := "Body text.\n\n" +
		"From: someone\n" +
		"middle\n" +
		"On Monday, Jane wrote:\n" +
		"tail"

	assert.Equal(t, "Body text.", Clean(in))
}

func TestCleanNormalizesLineEndings(t *testing.T) {
	in := "line one\r\nline two\rline three"

	assert.Equal(t, "line one\nline two\nline three", Clean(in))
}

func TestCleanCollapsesBlankRuns(t *testing.T) {
	// Three or more blank lines collapse; one blank line is preserved.
	assert.Equal(t, "a\n\nb", Clean("a\n\n\n\n\nb"))
	assert.Equal(t, "a\n\nb", Clean("a\n\nb"))
}

func TestCleanEmptyInput(t *testing.T) {
	assert.Equal(t, "", Clean(""))
	assert.Equal(t, "", Clean("   \n  \n"))
}

func TestCleanIsDeterministic(t *testing.T) {
	in := "Hi team,\n> quoted\n\nOn Tue, Sam wrote:\n> old"
	first := Clean(in)

	assert.Equal(t, first, Clean(in))
}
