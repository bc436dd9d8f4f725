package msgcat

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c := MustDefault()
	if got := c.Text(KeySessionFull, nil); got != "Masa dolu veya oyun bitti!" {
		t.Fatalf("session_full = %q", got)
	}
	if got := c.Text(KeyStoreUnavailable, nil); got != "Veritabanı hatası!" {
		t.Fatalf("store_unavailable = %q", got)
	}
	if c.SideLabel(0) != "Siyah" || c.SideLabel(1) != "Beyaz" {
		t.Fatalf("side labels: %q %q", c.SideLabel(0), c.SideLabel(1))
	}
	title, err := c.Render(KeyPreviewTitle, map[string]any{"Table": "T1"})
	if err != nil || title != "Masa T1" {
		t.Fatalf("Render title = %q, %v", title, err)
	}
	if _, err := c.Render(KeyPreviewTitle, map[string]any{}); err == nil {
		t.Fatalf("expected missing key error")
	}
	if got := c.Text("no.such.key", nil); got != "no.such.key" {
		t.Fatalf("fallback = %q", got)
	}
}

func writeMessages(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "messages.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOverrideFile(t *testing.T) {
	c, err := New(writeMessages(t, "side:\n  white: \"White\"\n"))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if c.SideLabel(1) != "White" || c.SideLabel(0) != "Siyah" {
		t.Fatalf("override not applied: %q %q", c.SideLabel(0), c.SideLabel(1))
	}
}

func TestOverrideFileErrors(t *testing.T) {
	cases := map[string]string{
		"unknown key":     "error:\n  no_such_error: \"x\"\n",
		"bad template":    "preview:\n  title: \"Masa {{.Table\"\n",
		"non-string leaf": "side:\n  black: [1, 2]\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := New(writeMessages(t, body)); err == nil {
				t.Fatalf("expected load error")
			}
		})
	}
	if _, err := New(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
