package envutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	values := map[string]string{
		"ORDERPREP_TEST_ADDR":   ":9090",
		"ORDERPREP_TEST_EXTRAS": "extras extras",
	}
	if err := WriteDotEnv(path, values, false); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteDotEnv(path, values, false); err == nil {
		t.Fatalf("expected error when file exists without overwrite")
	}

	t.Setenv("ORDERPREP_TEST_ADDR", ":1234")
	os.Unsetenv("ORDERPREP_TEST_EXTRAS")
	t.Cleanup(func() { os.Unsetenv("ORDERPREP_TEST_EXTRAS") })

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := os.Getenv("ORDERPREP_TEST_ADDR"); got != ":1234" {
		t.Fatalf("existing variable overridden: %q", got)
	}
	if got := os.Getenv("ORDERPREP_TEST_EXTRAS"); got != "extras extras" {
		t.Fatalf("quoted value not restored: %q", got)
	}
}

func TestParseLine(t *testing.T) {
	cases := []struct {
		line  string
		key   string
		value string
		ok    bool
	}{
		{"# comment", "", "", false},
		{"", "", "", false},
		{"NOVALUE", "", "", false},
		{"export A=1", "A", "1", true},
		{"B = 'two words'", "B", "two words", true},
		{"C=a=b", "C", "a=b", true},
		{"=x", "", "", false},
	}
	for _, tc := range cases {
		key, value, ok := parseLine(tc.line)
		if key != tc.key || value != tc.value || ok != tc.ok {
			t.Fatalf("parseLine(%q) = %q, %q, %v", tc.line, key, value, ok)
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
