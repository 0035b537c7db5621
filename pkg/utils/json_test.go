package utils

import (
	"testing"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "bare object",
			text:   `{"task": "code", "confidence": 0.9}`,
			want:   `{"task": "code", "confidence": 0.9}`,
			wantOK: true,
		},
		{
			name:   "object wrapped in prose",
			text:   "Here is the routing decision:\n{\"task\": \"chat\"}\nLet me know if you need anything else.",
			want:   `{"task": "chat"}`,
			wantOK: true,
		},
		{
			name:   "markdown fenced object",
			text:   "```json\n{\"task\": \"research\", \"entities\": {\"city\": \"Lisbon\"}}\n```",
			want:   `{"task": "research", "entities": {"city": "Lisbon"}}`,
			wantOK: true,
		},
		{
			name:   "nested braces",
			text:   `{"a": {"b": {"c": 1}}} trailing`,
			want:   `{"a": {"b": {"c": 1}}}`,
			wantOK: true,
		},
		{
			name:   "braces inside strings ignored",
			text:   `{"text": "use {curly} braces", "n": 1}`,
			want:   `{"text": "use {curly} braces", "n": 1}`,
			wantOK: true,
		},
		{
			name:   "escaped quote inside string",
			text:   `{"text": "she said \"hi\" {x}"}`,
			want:   `{"text": "she said \"hi\" {x}"}`,
			wantOK: true,
		},
		{
			name:   "no object",
			text:   "plain text, nothing here",
			wantOK: false,
		},
		{
			name:   "unbalanced",
			text:   `{"task": "code"`,
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONObject(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ExtractJSONObject() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractJSONObject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{
			name:   "bare array",
			text:   `[1, 2, 3]`,
			want:   `[1, 2, 3]`,
			wantOK: true,
		},
		{
			name:   "array in prose",
			text:   "The relevant document ids are: [4, 1, 7] based on the query.",
			want:   `[4, 1, 7]`,
			wantOK: true,
		},
		{
			name:   "nested arrays",
			text:   `[[1, 2], [3]]`,
			want:   `[[1, 2], [3]]`,
			wantOK: true,
		},
		{
			name:   "no array",
			text:   "nothing to see",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractJSONArray(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("ExtractJSONArray() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ExtractJSONArray() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnmarshalLenient(t *testing.T) {
	type decision struct {
		Task       string  `json:"task"`
		Confidence float64 `json:"confidence"`
	}

	t.Run("strict JSON", func(t *testing.T) {
		var d decision
		if err := UnmarshalLenient(`{"task":"code","confidence":0.9}`, &d); err != nil {
			t.Fatalf("UnmarshalLenient() error = %v", err)
		}
		if d.Task != "code" || d.Confidence != 0.9 {
			t.Errorf("UnmarshalLenient() = %+v", d)
		}
	})

	t.Run("JSON with surrounding prose", func(t *testing.T) {
		var d decision
		text := "Sure! Here's my answer:\n```json\n{\"task\": \"research\", \"confidence\": 0.75}\n```\nHope that helps."
		if err := UnmarshalLenient(text, &d); err != nil {
			t.Fatalf("UnmarshalLenient() error = %v", err)
		}
		if d.Task != "research" {
			t.Errorf("UnmarshalLenient() task = %v, want research", d.Task)
		}
	})

	t.Run("array target", func(t *testing.T) {
		var ids []int
		if err := UnmarshalLenient("ranked ids: [3, 1, 2]", &ids); err != nil {
			t.Fatalf("UnmarshalLenient() error = %v", err)
		}
		if len(ids) != 3 || ids[0] != 3 {
			t.Errorf("UnmarshalLenient() = %v", ids)
		}
	})

	t.Run("no JSON at all", func(t *testing.T) {
		var d decision
		if err := UnmarshalLenient("I'm not sure what you mean.", &d); err == nil {
			t.Error("UnmarshalLenient() expected error, got nil")
		}
	})
}
