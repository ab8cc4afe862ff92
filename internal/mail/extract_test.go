package mail

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
)

func b64(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func b64url(s string) string {
	return base64.URLEncoding.EncodeToString([]byte(s))
}

func TestExtractBodyPrefersTextPlain(t *testing.T) {
	root := &Part{
		MIMEType: "multipart/alternative",
		Parts: []*Part{
			{MIMEType: "text/html", Body: b64("<p>Hello HTML</p>")},
			{MIMEType: "text/plain", Body: b64("Hello plain")},
		},
	}

	assert.Equal(t, "Hello plain", ExtractBody(root))
}

func TestExtractBodyFallsBackToHTML(t *testing.T) {
	root := &Part{
		MIMEType: "multipart/alternative",
		Parts: []*Part{
			{MIMEType: "text/html", Body: b64("<div>Hello <b>there</b></div>")},
		},
	}

	assert.Equal(t, "Hello there", ExtractBody(root))
}

func TestExtractBodyFallsBackToAnyPayload(t *testing.T) {
	root := &Part{
		MIMEType: "multipart/mixed",
		Parts: []*Part{
			{MIMEType: "application/octet-stream", Body: b64("raw bytes")},
		},
	}

	assert.Equal(t, "raw bytes", ExtractBody(root))
}

func TestExtractBodyRootPayload(t *testing.T) {
	root := &Part{MIMEType: "text/plain", Body: b64("single part body")}

	assert.Equal(t, "single part body", ExtractBody(root))
}

func TestExtractBodyNestedPartTree(t *testing.T) {
	root := &Part{
		MIMEType: "multipart/mixed",
		Parts: []*Part{
			{
				MIMEType: "multipart/alternative",
				Parts: []*Part{
					{MIMEType: "text/plain", Body: b64("nested plain")},
				},
			},
			{MIMEType: "application/pdf", Body: b64("attachment")},
		},
	}

	assert.Equal(t, "nested plain", ExtractBody(root))
}

func TestExtractBodyURLSafeEncoding(t *testing.T) {
	// Payload chosen so the URL-safe alphabet differs from standard.
	payload := "subject?>>>more~~\xfb\xff"
	root := &Part{MIMEType: "text/plain", Body: b64url(payload)}

	assert.Equal(t, payload, ExtractBody(root))
}

func TestExtractBodyUnpaddedBase64(t *testing.T) {
	encoded := b64("hello")
	for len(encoded) > 0 && encoded[len(encoded)-1] == '=' {
		encoded = encoded[:len(encoded)-1]
	}
	root := &Part{MIMEType: "text/plain", Body: encoded}

	assert.Equal(t, "hello", ExtractBody(root))
}

func TestExtractBodyEmptyTree(t *testing.T) {
	assert.Equal(t, "", ExtractBody(nil))
	assert.Equal(t, "", ExtractBody(&Part{MIMEType: "multipart/mixed"}))
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			name: "strips script and style",
			html: "<style>.a{color:red}</style><script>alert(1)</script>Hi",
			want: "Hi",
		},
		{
			name: "breaks become newlines",
			html: "line one<br>line two<p>line three</p>",
			want: "line one\nline two\nline three",
		},
		{
			name: "entities decoded",
			html: "Tom &amp; Jerry &lt;3&nbsp;&quot;quoted&quot;",
			want: `Tom & Jerry <3 "quoted"`,
		},
		{
			name: "comments removed",
			html: "before<!-- hidden -->after",
			want: "beforeafter",
		},
		{
			name: "whitespace collapsed",
			html: "<p>a</p>\n\n\n\n<p>b</p>   c",
			want: "a\n\nb\n c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTMLToText(tt.html))
		})
	}
}
