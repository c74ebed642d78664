package campaign

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderSubstitutesByKey(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		fields map[string]string
		want   string
	}{
		{
			name:   "all fields present",
			text:   "Dear [Name], from [Org].",
			fields: map[string]string{"Name": "A", "Org": "B"},
			want:   "Dear A, from B.",
		},
		{
			name:   "missing field renders empty, never errors",
			text:   "Dear [Name], from [Org].",
			fields: map[string]string{"Name": "A"},
			want:   "Dear A, from .",
		},
		{
			name:   "repeated placeholder",
			text:   "[Name] and [Name]",
			fields: map[string]string{"Name": "A"},
			want:   "A and A",
		},
		{
			name:   "no placeholders",
			text:   "plain text",
			fields: map[string]string{"Name": "A"},
			want:   "plain text",
		},
		{
			name:   "substitution is by key, not by value",
			text:   "Hi [Name]",
			fields: map[string]string{"Name": "Bob", "Other": "Name"},
			want:   "Hi Bob",
		},
		{
			name:   "placeholder with spaces",
			text:   "at [Company Name]",
			fields: map[string]string{"Company Name": "Acme"},
			want:   "at Acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := &Template{Body: tt.text}
			_, body := tmpl.Render(Contact{Email: "x@y.com", Fields: tt.fields})
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestParseTemplateSubjectLine(t *testing.T) {
	tmpl := ParseTemplate("Subject: Hello [Name]\n\nDear [Name],\nbody here.\n")
	assert.Equal(t, "Hello [Name]", tmpl.Subject)
	assert.Equal(t, "Dear [Name],\nbody here.\n", tmpl.Body)

	subject, body := tmpl.Render(Contact{Fields: map[string]string{"Name": "A"}})
	assert.Equal(t, "Hello A", subject)
	assert.Equal(t, "Dear A,\nbody here.\n", body)
}

func TestParseTemplateWithoutSubject(t *testing.T) {
	tmpl := ParseTemplate("Dear [Name],\nno subject line here.")
	assert.Empty(t, tmpl.Subject)
	assert.Equal(t, "Dear [Name],\nno subject line here.", tmpl.Body)
}

func TestPlaceholders(t *testing.T) {
	tmpl := ParseTemplate("Subject: For [Name]\n\n[Name] at [Org], greetings from [Sender].")
	assert.Equal(t, []string{"Name", "Org", "Sender"}, tmpl.Placeholders())
}
