package documents

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vecinal/certdesk/modules/certificates/domain"
	"github.com/vecinal/certdesk/modules/certificates/domain/aggregates/request"
	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
)

func writeTemplate(t *testing.T) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 20, 26))
	for x := 0; x < 20; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func approvedRecord() history.Record {
	return history.Record{
		RequestID:     1,
		Folio:         "C-00100",
		RequestorName: "María José Núñez",
		NationalID:    "12.345.678-5",
		Address:       "Los Aromos 123, Peñalolén",
		PaymentMethod: request.BankTransfer,
		State:         request.Approved,
		ChangedAt:     time.Date(2026, time.October, 16, 15, 0, 0, 0, time.UTC),
	}
}

func newGenerator(t *testing.T, templatePath string) *Generator {
	t.Helper()
	return NewGenerator(Options{
		TemplatePath:     templatePath,
		Layout:           DefaultLayout(),
		OrganizationName: "Junta de Vecinos Los Aromos",
		Location:         time.UTC,
	})
}

func TestRender_ProducesDeterministicPDF(t *testing.T) {
	g := newGenerator(t, writeTemplate(t))

	first, err := g.Render(context.Background(), approvedRecord())
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(first, []byte("%PDF-")))

	second, err := g.Render(context.Background(), approvedRecord())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRender_MissingTemplate(t *testing.T) {
	g := newGenerator(t, filepath.Join(t.TempDir(), "absent.png"))
	_, err := g.Render(context.Background(), approvedRecord())
	require.ErrorIs(t, err, domain.ErrTemplateLoad)
}

func TestRender_TemplateNotAnImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.png")
	require.NoError(t, os.WriteFile(path, []byte("not an image"), 0o644))

	_, err := newGenerator(t, path).Render(context.Background(), approvedRecord())
	require.ErrorIs(t, err, domain.ErrTemplateLoad)
}

func TestRender_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newGenerator(t, writeTemplate(t)).Render(ctx, approvedRecord())
	require.ErrorIs(t, err, context.Canceled)
}

func TestQRText(t *testing.T) {
	rec := approvedRecord()
	assert.Equal(t,
		"https://jv.example.cl/certificates/C-00100",
		QRText("https://jv.example.cl/", rec, time.UTC),
	)
	assert.Equal(t,
		"Certificado de Residencia N° C-00100 - María José Núñez - RUT 12.345.678-5 - emitido 16/10/2026",
		QRText("", rec, time.UTC),
	)
	rec.NationalID = "123456785"
	assert.Contains(t, QRText("", rec, time.UTC), "RUT 12.345.678-5")
}

func TestSplitTemplate(t *testing.T) {
	got := splitTemplate("Hola {name}, RUT {national_id}. {oops")
	assert.Equal(t, []segment{
		{text: "Hola "},
		{key: "name"},
		{text: ", RUT "},
		{key: "national_id"},
		{text: ". {oops"},
	}, got)
}

func TestLongDate(t *testing.T) {
	d := time.Date(2026, time.March, 2, 2, 0, 0, 0, time.UTC)
	assert.Equal(t, "2 de marzo de 2026", LongDate(d, time.UTC))
	loc := time.FixedZone("CLT", -4*3600)
	assert.Equal(t, "1 de marzo de 2026", LongDate(d, loc))
	assert.Equal(t, "01/03/2026", ShortDate(d, loc))
}

func TestLoadLayout_OverridesOnlyGivenKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte("[qr]\nsize = 55.0\n"), 0o644))

	l, err := LoadLayout(path)
	require.NoError(t, err)
	def := DefaultLayout()
	assert.Equal(t, 55.0, l.QR.Size)
	assert.Equal(t, def.QR.X, l.QR.X)
	assert.Equal(t, def.Body.Text, l.Body.Text)
	assert.Contains(t, def.Body.Text, "{name}")
	assert.NotContains(t, def.Body.Text, "\n")
}

func TestLoadLayout_RejectsUnknownPlaceholder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "layout.toml")
	require.NoError(t, os.WriteFile(path, []byte("[body]\ntext = \"Vecino {nmae} de {address}\"\n"), 0o644))
	_, err := LoadLayout(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "{nmae}")

	require.NoError(t, os.WriteFile(path, []byte("[body]\nbold = [\"name\", \"rut\"]\n"), 0o644))
	_, err = LoadLayout(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rut")
}

func TestDefaultLayout_IsValid(t *testing.T) {
	require.NoError(t, DefaultLayout().Validate())
}

func TestValues_CoverEveryPlaceholder(t *testing.T) {
	rec := approvedRecord()
	rec.NationalID = "123456785"
	values := newGenerator(t, "").values(rec)
	for _, k := range Placeholders {
		assert.NotEmpty(t, values[k], k)
	}
	assert.Equal(t, "12.345.678-5", values["national_id"])
	assert.Equal(t, "MARÍA JOSÉ NÚÑEZ", values["name"])
}

func TestRender_SignatureBlock(t *testing.T) {
	tpl := writeTemplate(t)
	unsigned, err := newGenerator(t, tpl).Render(context.Background(), approvedRecord())
	require.NoError(t, err)

	g := newGenerator(t, tpl)
	g.opts.SignerName = "Rosa Medina"
	g.opts.SignerTitle = "Presidenta"
	signed, err := g.Render(context.Background(), approvedRecord())
	require.NoError(t, err)
	assert.NotEqual(t, unsigned, signed)

	g.opts.Layout.Signature.Width = 0
	bare, err := g.Render(context.Background(), approvedRecord())
	require.NoError(t, err)
	assert.NotEqual(t, signed, bare)
}

func TestLoadLayout_MissingFile(t *testing.T) {
	_, err := LoadLayout(filepath.Join(t.TempDir(), "nope.toml"))
	require.Error(t, err)
}
