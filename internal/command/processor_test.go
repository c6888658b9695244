package command

import (
	"testing"
)

func defaultRules() map[string]string {
	return map[string]string{
		"comma":         ",",
		"period":        ".",
		"question mark": "?",
		"new line":      "\n",
		"new paragraph": "\n\n",
	}
}

func TestProcess_ExactReplacement(t *testing.T) {
	p := New(defaultRules())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"comma attaches", "hello comma world", "hello, world"},
		{"period at end", "that is all period", "that is all."},
		{"multi word phrase", "are you sure question mark", "are you sure?"},
		{"case insensitive", "Hello Comma World", "Hello, World"},
		{"no commands", "just plain dictation", "just plain dictation"},
		{"empty input", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Process(tt.in); got != tt.want {
				t.Errorf("Process(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestProcess_LongestPhraseWins(t *testing.T) {
	p := New(map[string]string{
		"new":      "NEW",
		"new line": "\n",
	}, WithoutFuzzy())

	got := p.Process("start new line end")
	want := "start \nend"
	if got != want {
		t.Errorf("Process = %q, want %q", got, want)
	}
}

func TestProcess_NewlineDoesNotAttach(t *testing.T) {
	p := New(defaultRules(), WithoutFuzzy())

	got := p.Process("first new line second")
	want := "first \nsecond"
	if got != want {
		t.Errorf("Process = %q, want %q", got, want)
	}
}

func TestProcess_PhoneticMatch(t *testing.T) {
	p := New(defaultRules())

	// "coma" shares Double Metaphone codes with "comma" and scores high
	// on Jaro-Winkler, so the misrecognition still triggers the command.
	got := p.Process("hello coma world")
	want := "hello, world"
	if got != want {
		t.Errorf("Process = %q, want %q", got, want)
	}
}

func TestProcess_FuzzyDisabled(t *testing.T) {
	p := New(defaultRules(), WithoutFuzzy())

	in := "hello coma world"
	if got := p.Process(in); got != in {
		t.Errorf("Process = %q, want unchanged %q", got, in)
	}
}

func TestProcess_UnrelatedWordsNotRewritten(t *testing.T) {
	p := New(defaultRules())

	in := "the committee meets on monday"
	if got := p.Process(in); got != in {
		t.Errorf("Process = %q, want unchanged %q", got, in)
	}
}

func TestProcess_ConsecutiveCommands(t *testing.T) {
	p := New(defaultRules(), WithoutFuzzy())

	got := p.Process("done period new paragraph next")
	want := "done. \n\nnext"
	if got != want {
		t.Errorf("Process = %q, want %q", got, want)
	}
}

func TestUpdateRules_HotSwap(t *testing.T) {
	p := New(map[string]string{"comma": ","}, WithoutFuzzy())

	if got := p.Process("a comma b"); got != "a, b" {
		t.Fatalf("before update: %q", got)
	}

	p.UpdateRules(map[string]string{"dash": "-"})

	if got := p.Process("a comma b"); got != "a comma b" {
		t.Errorf("old rule still active: %q", got)
	}
	if got := p.Process("a dash b"); got != "a - b" {
		t.Errorf("new rule not applied: %q", got)
	}
}

func TestUpdateRules_SkipsInvalidEntries(t *testing.T) {
	p := New(map[string]string{
		"":      "x",
		"   ":   "y",
		"valid": "",
		"comma": ",",
	}, WithoutFuzzy())

	if got := p.Process("one comma two"); got != "one, two" {
		t.Errorf("Process = %q, want %q", got, "one, two")
	}
}

func TestProcess_NoRulesIsPassthrough(t *testing.T) {
	p := New(nil)
	in := "anything at all"
	if got := p.Process(in); got != in {
		t.Errorf("Process = %q, want %q", got, in)
	}
}

func TestEnsureTrailingSpace(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"hello", "hello "},
		{"hello ", "hello "},
		{"hello\n", "hello\n"},
		{"hello\r", "hello\r"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := EnsureTrailingSpace(tt.in); got != tt.want {
			t.Errorf("EnsureTrailingSpace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
