package language

import "testing"

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{
			name: "english sentence",
			text: "How do I determine the rate of pay for a new employee from outside the public service?",
			want: English,
		},
		{
			name: "french sentence",
			text: "Quelle convention collective devrait être utilisée pour un employé de la classification PE?",
			want: French,
		},
		{"empty", "", English},
		{"whitespace", "   ", English},
		{"unreliable short input", "ok", English},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Detect(tt.text); got != tt.want {
				t.Errorf("Detect(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}
