package msgcat

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/template"

	yaml "gopkg.in/yaml.v3"
)

//go:embed messages.tr.yaml
var defaultMessages []byte

// Keys used by the server.
const (
	KeyMissingCredential = "error.missing_credential"
	KeyInvalidCredential = "error.invalid_credential"
	KeyUnknownSession    = "error.unknown_session"
	KeySessionFull       = "error.session_full"
	KeyStoreUnavailable  = "error.store_unavailable"
	KeySideBlack         = "side.black"
	KeySideWhite         = "side.white"
	KeyPreviewTitle      = "preview.title"
	KeyPreviewTurn       = "preview.turn"
	KeyPreviewWaiting    = "preview.waiting"
)

// messages mirrors messages.tr.yaml. An override file uses the same shape;
// fields it leaves empty keep the embedded text.
type messages struct {
	Error struct {
		MissingCredential string `yaml:"missing_credential"`
		InvalidCredential string `yaml:"invalid_credential"`
		UnknownSession    string `yaml:"unknown_session"`
		SessionFull       string `yaml:"session_full"`
		StoreUnavailable  string `yaml:"store_unavailable"`
	} `yaml:"error"`
	Side struct {
		Black string `yaml:"black"`
		White string `yaml:"white"`
	} `yaml:"side"`
	Preview struct {
		Title   string `yaml:"title"`
		Turn    string `yaml:"turn"`
		Waiting string `yaml:"waiting"`
	} `yaml:"preview"`
}

func (m *messages) byKey() map[string]string {
	return map[string]string{
		KeyMissingCredential: m.Error.MissingCredential,
		KeyInvalidCredential: m.Error.InvalidCredential,
		KeyUnknownSession:    m.Error.UnknownSession,
		KeySessionFull:       m.Error.SessionFull,
		KeyStoreUnavailable:  m.Error.StoreUnavailable,
		KeySideBlack:         m.Side.Black,
		KeySideWhite:         m.Side.White,
		KeyPreviewTitle:      m.Preview.Title,
		KeyPreviewTurn:       m.Preview.Turn,
		KeyPreviewWaiting:    m.Preview.Waiting,
	}
}

// Catalog holds the compiled user-facing templates. It is immutable after New.
type Catalog struct {
	tpls map[string]*template.Template
}

// New compiles the embedded Turkish texts, then the override file when path is set.
// Unknown keys and templates that do not parse are load errors.
func New(path string) (*Catalog, error) {
	texts, err := decode(defaultMessages, "embedded messages")
	if err != nil {
		return nil, err
	}
	if path = strings.TrimSpace(path); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read messages file: %w", err)
		}
		over, err := decode(raw, path)
		if err != nil {
			return nil, err
		}
		for k, v := range over {
			if strings.TrimSpace(v) != "" {
				texts[k] = v
			}
		}
	}

	c := &Catalog{tpls: make(map[string]*template.Template, len(texts))}
	keys := make([]string, 0, len(texts))
	for k := range texts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if strings.TrimSpace(texts[k]) == "" {
			return nil, fmt.Errorf("message %s is empty", k)
		}
		t, err := template.New(k).Option("missingkey=error").Parse(texts[k])
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", k, err)
		}
		c.tpls[k] = t
	}
	return c, nil
}

func decode(raw []byte, source string) (map[string]string, error) {
	var m messages
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	return m.byKey(), nil
}

// MustDefault returns the embedded catalog and panics if it cannot be parsed.
func MustDefault() *Catalog {
	c, err := New("")
	if err != nil {
		panic(err)
	}
	return c
}

// Render executes the template stored under key.
func (c *Catalog) Render(key string, data any) (string, error) {
	t, ok := c.tpls[key]
	if !ok {
		return "", fmt.Errorf("unknown message key: %s", key)
	}
	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Text renders key and falls back to key itself when rendering fails.
func (c *Catalog) Text(key string, data any) string {
	if c == nil {
		return key
	}
	s, err := c.Render(key, data)
	if err != nil {
		return key
	}
	return s
}

// SideLabel names a board side (0 black, 1 white).
func (c *Catalog) SideLabel(side int) string {
	if side == 0 {
		return c.Text(KeySideBlack, nil)
	}
	return c.Text(KeySideWhite, nil)
}
