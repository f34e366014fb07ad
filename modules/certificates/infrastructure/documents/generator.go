// Package documents renders residency certificates as PDF.
package documents

import (
	"bytes"
	"context"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-faster/errors"
	"github.com/go-pdf/fpdf"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"rsc.io/qr"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
	"github.com/vecinal/certdesk/modules/certificates/domain/value_objects/nationalid"
)

type Options struct {
	// TemplatePath is the background image, read on every render so it
	// can be replaced without a restart.
	TemplatePath      string
	Layout            Layout
	ValidationBaseURL string
	OrganizationName  string
	// SignerName and SignerTitle label the signature block. An empty name
	// leaves the line blank for a handwritten signature.
	SignerName        string
	SignerTitle       string
	Location          *time.Location
}

type Generator struct {
	opts  Options
	upper cases.Caser
}

func NewGenerator(opts Options) *Generator {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Generator{opts: opts, upper: cases.Upper(language.Spanish)}
}

// QRText is the payload encoded in the certificate's QR code.
func QRText(baseURL string, rec history.Record, loc *time.Location) string {
	if base := strings.TrimRight(strings.TrimSpace(baseURL), "/"); base != "" {
		return base + "/certificates/" + rec.Folio
	}
	return "Certificado de Residencia N° " + rec.Folio +
		" - " + rec.RequestorName +
		" - RUT " + nationalid.Format(rec.NationalID) +
		" - emitido " + ShortDate(rec.ChangedAt, loc)
}

// Render builds the certificate for rec fully in memory. Output depends
// only on rec, the layout and the template image.
func (g *Generator) Render(ctx context.Context, rec history.Record) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	background, imageType, err := readTemplate(g.opts.TemplatePath)
	if err != nil {
		return nil, domain.Wrap(domain.ErrTemplateLoad, err)
	}

	l := g.opts.Layout
	pdf := fpdf.New(l.Orientation, "mm", l.PageSize, "")
	pdf.SetCreationDate(rec.ChangedAt)
	pdf.SetModificationDate(rec.ChangedAt)
	pdf.SetCatalogSort(true)
	pdf.SetTitle("Certificado de Residencia "+rec.Folio, true)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pageW, pageH := pdf.GetPageSize()

	opts := fpdf.ImageOptions{ImageType: imageType}
	pdf.RegisterImageOptionsReader("template", opts, bytes.NewReader(background))
	if err := pdf.Error(); err != nil {
		return nil, domain.Wrap(domain.ErrTemplateLoad, err)
	}
	pdf.ImageOptions("template", 0, 0, pageW, pageH, false, opts, 0, "")

	text(pdf, l.Folio, tr(l.Folio.Prefix+rec.Folio))
	text(pdf, l.Date, tr(l.Date.Prefix+LongDate(rec.ChangedAt, g.opts.Location)))
	g.body(pdf, tr, rec, pageW)
	g.signature(pdf, tr)

	code, err := qr.Encode(QRText(g.opts.ValidationBaseURL, rec, g.opts.Location), qrLevel(l.QR.Level))
	if err != nil {
		return nil, errors.Wrap(err, "encode qr")
	}
	qrOpts := fpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("qr", qrOpts, bytes.NewReader(code.PNG()))
	pdf.ImageOptions("qr", l.QR.X, l.QR.Y, l.QR.Size, l.QR.Size, false, qrOpts, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, errors.Wrap(err, "render certificate")
	}
	return buf.Bytes(), nil
}

// values fills every key in Placeholders for rec.
func (g *Generator) values(rec history.Record) map[string]string {
	return map[string]string{
		"name":         g.upper.String(rec.RequestorName),
		"national_id":  nationalid.Format(rec.NationalID),
		"address":      rec.Address,
		"folio":        rec.Folio,
		"organization": g.opts.OrganizationName,
		"date":         LongDate(rec.ChangedAt, g.opts.Location),
	}
}

func (g *Generator) body(pdf *fpdf.Fpdf, tr func(string) string, rec history.Record, pageW float64) {
	b := g.opts.Layout.Body
	values := g.values(rec)
	bold := make(map[string]bool, len(b.Bold))
	for _, k := range b.Bold {
		bold[k] = true
	}

	pdf.SetLeftMargin(b.X)
	pdf.SetRightMargin(pageW - b.X - b.Width)
	pdf.SetXY(b.X, b.Y)
	for _, seg := range splitTemplate(b.Text) {
		style := ""
		out := seg.text
		if seg.key != "" {
			out = values[seg.key]
			if bold[seg.key] {
				style = "B"
			}
		}
		pdf.SetFont(b.Font, style, b.Size)
		pdf.Write(b.LineHeight, tr(out))
	}
}

func (g *Generator) signature(pdf *fpdf.Fpdf, tr func(string) string) {
	sig := g.opts.Layout.Signature
	if sig.Width <= 0 {
		return
	}
	pdf.SetLineWidth(0.3)
	pdf.Line(sig.X, sig.Y, sig.X+sig.Width, sig.Y)
	pdf.SetXY(sig.X, sig.Y+1)
	for _, line := range []struct {
		style string
		text  string
	}{
		{"B", g.opts.SignerName},
		{"", g.opts.SignerTitle},
		{"", g.opts.OrganizationName},
	} {
		if line.text == "" {
			continue
		}
		pdf.SetFont(sig.Font, line.style, sig.Size)
		pdf.SetX(sig.X)
		pdf.CellFormat(sig.Width, sig.LineHeight, tr(line.text), "", 2, "C", false, 0, "")
	}
}

func text(pdf *fpdf.Fpdf, box TextBox, s string) {
	pdf.SetFont(box.Font, box.Style, box.Size)
	pdf.Text(box.X, box.Y, s)
}

type segment struct {
	text string
	key  string
}

// splitTemplate cuts "a {name} b" into literal and placeholder segments.
// An unmatched brace is kept as text.
func splitTemplate(s string) []segment {
	var out []segment
	for s != "" {
		open := strings.IndexByte(s, '{')
		if open < 0 {
			out = append(out, segment{text: s})
			break
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			out = append(out, segment{text: s})
			break
		}
		if open > 0 {
			out = append(out, segment{text: s[:open]})
		}
		out = append(out, segment{key: s[open+1 : open+end]})
		s = s[open+end+1:]
	}
	return out
}

func readTemplate(path string) ([]byte, string, error) {
	if path == "" {
		return nil, "", errors.New("certificate template path is not configured")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", errors.Wrap(err, "read certificate template")
	}
	switch mt := mimetype.Detect(data); {
	case mt.Is("image/png"):
		return data, "PNG", nil
	case mt.Is("image/jpeg"):
		return data, "JPG", nil
	default:
		return nil, "", errors.Errorf("certificate template %s is %s, expected PNG or JPEG", path, mt.String())
	}
}

func qrLevel(s string) qr.Level {
	switch strings.ToUpper(s) {
	case "L":
		return qr.L
	case "Q":
		return qr.Q
	case "H":
		return qr.H
	default:
		return qr.M
	}
}
