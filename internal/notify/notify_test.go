package notify

import "testing"

func TestNoop_NeverFails(t *testing.T) {
	var n Notifier = Noop{}
	if err := n.Notify("title", "body"); err != nil {
		t.Errorf("Noop.Notify returned %v", err)
	}
}

func TestNew_DisabledReturnsNoop(t *testing.T) {
	n := New("voxinput", false)
	if _, ok := n.(Noop); !ok {
		t.Errorf("New(disabled) = %T, want Noop", n)
	}
}

func TestNew_EnabledReturnsDesktop(t *testing.T) {
	n := New("voxinput", true)
	if _, ok := n.(*Desktop); !ok {
		t.Errorf("New(enabled) = %T, want *Desktop", n)
	}
}

func TestDesktop_TitleCarriesAppName(t *testing.T) {
	d := NewDesktop("VoxInput")
	tests := []struct {
		in, want string
	}{
		{"Dictation on", "VoxInput: Dictation on"},
		{"VoxInput", "VoxInput"},
	}
	for _, tt := range tests {
		if got := d.title(tt.in); got != tt.want {
			t.Errorf("title(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	bare := NewDesktop("")
	if got := bare.title("Dictation on"); got != "Dictation on" {
		t.Errorf("title with empty app name = %q, want unchanged", got)
	}
}
