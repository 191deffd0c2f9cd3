package format

import "testing"

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"y": YAMLFormat, "yaml": YAMLFormat, "j": JSONFormat, "json": JSONFormat} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("toml"); err == nil {
		t.Errorf("expected error")
	}
	var f Format
	if err := f.UnmarshalText([]byte("json")); err != nil || f != JSONFormat {
		t.Errorf("UnmarshalText: %v %v", f, err)
	}
}
