package voiceopts_test

import (
	"errors"
	"testing"

	"github.com/voxrelay/voxrelay/internal/voiceopts"
)

func f(v float64) *float64 { return &v }

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		input    string
		wantBody string
		wantOv   voiceopts.Overrides
	}{
		{
			name:     "flags then quoted body",
			input:    `-s 0.4 -v 1.1 "Hola"`,
			wantBody: "Hola",
			wantOv:   voiceopts.Overrides{Stability: f(0.4), Speed: f(1.1)},
		},
		{
			name:     "plain body no flags",
			input:    "buenos dias",
			wantBody: "buenos dias",
		},
		{
			name:     "all three flags",
			input:    `-s 0.5 -v 0.9 -b 1 hello there`,
			wantBody: "hello there",
			wantOv:   voiceopts.Overrides{Stability: f(0.5), Speed: f(0.9), SimilarityBoost: f(1)},
		},
		{
			name:     "flags interleaved with body",
			input:    `hello -s 0.3 world`,
			wantBody: "hello world",
			wantOv:   voiceopts.Overrides{Stability: f(0.3)},
		},
		{
			name:     "quoted multiword body",
			input:    `-v 1.0 "hola que tal"`,
			wantBody: "hola que tal",
			wantOv:   voiceopts.Overrides{Speed: f(1.0)},
		},
		{
			name:     "unrecognized dash token joins body",
			input:    `-x 3 hello`,
			wantBody: "-x 3 hello",
		},
		{
			name:     "repeated flag keeps last value",
			input:    `-s 0.1 -s 0.9 hi`,
			wantBody: "hi",
			wantOv:   voiceopts.Overrides{Stability: f(0.9)},
		},
		{
			name:     "out of range value accepted here",
			input:    `-v 99 hi`,
			wantBody: "hi",
			wantOv:   voiceopts.Overrides{Speed: f(99)},
		},
		{
			name:     "negative value accepted here",
			input:    `-s -0.4 hi`,
			wantBody: "hi",
			wantOv:   voiceopts.Overrides{Stability: f(-0.4)},
		},
		{
			name:     "empty input",
			input:    "",
			wantBody: "",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			res, err := voiceopts.Parse(tt.input)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if res.Body != tt.wantBody {
				t.Errorf("Body = %q, want %q", res.Body, tt.wantBody)
			}
			checkFloat(t, "Stability", res.Overrides.Stability, tt.wantOv.Stability)
			checkFloat(t, "Speed", res.Overrides.Speed, tt.wantOv.Speed)
			checkFloat(t, "SimilarityBoost", res.Overrides.SimilarityBoost, tt.wantOv.SimilarityBoost)
		})
	}
}

func checkFloat(t *testing.T, name string, got, want *float64) {
	t.Helper()
	switch {
	case got == nil && want == nil:
	case got == nil || want == nil:
		t.Errorf("%s = %v, want %v", name, deref(got), deref(want))
	case *got != *want:
		t.Errorf("%s = %v, want %v", name, *got, *want)
	}
}

func deref(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		input     string
		wantFlag  string
		wantToken string
	}{
		{name: "non-numeric value", input: `-s abc "Hola"`, wantFlag: "-s", wantToken: "abc"},
		{name: "trailing flag without value", input: `"Hola" -s`, wantFlag: "-s"},
		{name: "lone flag", input: `-v`, wantFlag: "-v"},
		{name: "second flag bad", input: `-s 0.4 -b x hi`, wantFlag: "-b", wantToken: "x"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := voiceopts.Parse(tt.input)
			if err == nil {
				t.Fatalf("Parse(%q): expected error, got nil", tt.input)
			}

			var perr *voiceopts.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("Parse(%q) error type = %T, want *ParseError", tt.input, err)
			}
			if perr.Flag != tt.wantFlag {
				t.Errorf("ParseError.Flag = %q, want %q", perr.Flag, tt.wantFlag)
			}
			if perr.Token != tt.wantToken {
				t.Errorf("ParseError.Token = %q, want %q", perr.Token, tt.wantToken)
			}
		})
	}
}

func TestOverrides_Empty(t *testing.T) {
	t.Parallel()

	if !(voiceopts.Overrides{}).Empty() {
		t.Error("zero Overrides.Empty() = false, want true")
	}
	if (voiceopts.Overrides{Speed: f(1)}).Empty() {
		t.Error("Overrides with Speed set reports Empty")
	}
}
