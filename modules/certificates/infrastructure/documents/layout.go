package documents

import (
	_ "embed"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

//go:embed default.toml
var defaultLayout string

type TextBox struct {
	X      float64 `toml:"x"`
	Y      float64 `toml:"y"`
	Font   string  `toml:"font"`
	Style  string  `toml:"style"`
	Size   float64 `toml:"size"`
	Prefix string  `toml:"prefix"`
}

type Body struct {
	X          float64  `toml:"x"`
	Y          float64  `toml:"y"`
	Width      float64  `toml:"width"`
	LineHeight float64  `toml:"line_height"`
	Font       string   `toml:"font"`
	Size       float64  `toml:"size"`
	Text       string   `toml:"text"`
	Bold       []string `toml:"bold"`
}

// Signature is the signing block: a rule with the signer's name and title
// centred below it.
type Signature struct {
	X          float64 `toml:"x"`
	Y          float64 `toml:"y"`
	Width      float64 `toml:"width"`
	LineHeight float64 `toml:"line_height"`
	Font       string  `toml:"font"`
	Size       float64 `toml:"size"`
}

type QR struct {
	X     float64 `toml:"x"`
	Y     float64 `toml:"y"`
	Size  float64 `toml:"size"`
	Level string  `toml:"level"`
}

// Layout places the variable parts of the certificate over the template.
type Layout struct {
	Orientation string  `toml:"orientation"`
	PageSize    string  `toml:"page_size"`
	Folio       TextBox `toml:"folio"`
	Date        TextBox `toml:"date"`
	Body        Body      `toml:"body"`
	Signature   Signature `toml:"signature"`
	QR          QR        `toml:"qr"`
}

// Placeholders are the keys a body template may reference.
var Placeholders = []string{"name", "national_id", "address", "folio", "organization", "date"}

// Validate rejects body templates and bold lists naming unknown keys, so a
// typo cannot print a certificate with a blank where a value belongs.
func (l Layout) Validate() error {
	known := make(map[string]bool, len(Placeholders))
	for _, k := range Placeholders {
		known[k] = true
	}
	for _, seg := range splitTemplate(l.Body.Text) {
		if seg.key != "" && !known[seg.key] {
			return errors.Errorf("body text uses unknown placeholder {%s}", seg.key)
		}
	}
	for _, k := range l.Body.Bold {
		if !known[k] {
			return errors.Errorf("body bold list names unknown placeholder %q", k)
		}
	}
	return nil
}

func DefaultLayout() Layout {
	var l Layout
	if _, err := toml.Decode(defaultLayout, &l); err != nil {
		panic(errors.Wrap(err, "embedded certificate layout"))
	}
	return l
}

// LoadLayout reads a TOML file over the default layout, so a file only
// needs the keys it changes. An empty path returns the default.
func LoadLayout(path string) (Layout, error) {
	l := DefaultLayout()
	if path == "" {
		return l, nil
	}
	if _, err := toml.DecodeFile(path, &l); err != nil {
		return Layout{}, errors.Wrapf(err, "load certificate layout %s", path)
	}
	if err := l.Validate(); err != nil {
		return Layout{}, errors.Wrapf(err, "certificate layout %s", path)
	}
	return l, nil
}
