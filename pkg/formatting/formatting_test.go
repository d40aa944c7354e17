package formatting_test

import (
	"errors"
	"testing"

	"github.com/JaimeStill/claimsync/pkg/formatting"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func TestSize(t *testing.T) {
	tests := []struct {
		name string
		n    int
		want string
	}{
		{"zero", 0, "0 B"},
		{"negative", -4, "0 B"},
		{"bytes", 500, "500 B"},
		{"one KB", 1024, "1 KB"},
		{"fractional KB", 1536, "1.5 KB"},
		{"one MB", 1024 * 1024, "1 MB"},
		{"fractional MB", 1536 * 1024, "1.5 MB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatting.Size(tt.n); got != tt.want {
				t.Errorf("Size(%d) = %q, want %q", tt.n, got, tt.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  sample
	}{
		{"direct JSON", `{"name":"test","value":42}`, sample{"test", 42}},
		{"padded", `  {"name":"padded","value":1}  `, sample{"padded", 1}},
		{"fenced", "```json\n{\"name\":\"fenced\",\"value\":7}\n```", sample{"fenced", 7}},
		{"bare fence", "```\n{\"name\":\"bare\",\"value\":3}\n```", sample{"bare", 3}},
		{"surrounding prose", "Here is my answer: {\"name\":\"prose\",\"value\":9} Hope it helps.", sample{"prose", 9}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Parse[sample](tt.input)
			if err != nil {
				t.Fatalf("Parse error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Parse = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestParseFailure(t *testing.T) {
	for _, input := range []string{"", "not json at all", "{broken"} {
		if _, err := formatting.Parse[sample](input); !errors.Is(err, formatting.ErrParseFailed) {
			t.Errorf("Parse(%q) error = %v, want ErrParseFailed", input, err)
		}
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want sample
	}{
		{"object", `{"name":"object","value":1}`, sample{"object", 1}},
		{"string holding JSON", `"{\"name\":\"text\",\"value\":2}"`, sample{"text", 2}},
		{"string holding fence", `"` + "```json\\n{\\\"name\\\":\\\"fence\\\",\\\"value\\\":3}\\n```" + `"`, sample{"fence", 3}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := formatting.Decode[sample]([]byte(tt.raw))
			if err != nil {
				t.Fatalf("Decode error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Decode = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := formatting.Decode[sample]([]byte(`42`)); !errors.Is(err, formatting.ErrParseFailed) {
		t.Errorf("Decode(42) error = %v, want ErrParseFailed", err)
	}
}
