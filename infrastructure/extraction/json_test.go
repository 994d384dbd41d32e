package extraction

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     string
	}{
		{"bare object", `{"kind":"passport"}`, `{"kind":"passport"}`},
		{"surrounding whitespace", "\n  {\"a\":1}  \n", `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"plain fence", "```\n{\"a\":{\"b\":2}}\n```", `{"a":{"b":2}}`},
		{"prose around", `Sure. {"a":1} Let me know.`, `{"a":1}`},
		{"brace in string", `{"reason":"looks like } a card","kind":"cni"}`, `{"reason":"looks like } a card","kind":"cni"}`},
		{"escaped quote", `{"reason":"the \"PASSEPORT\" {title}"}`, `{"reason":"the \"PASSEPORT\" {title}"}`},
		{"first of two", `{"a":1}{"b":2}`, `{"a":1}`},
		{"no object", "no JSON here", ""},
		{"unterminated", `{"a":{"b":1}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractJSON(tt.response))
		})
	}
}
