package services

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"

	"github.com/vecinal/certdesk/modules/certificates/domain/entities/history"
)

const exportSheet = "Historial"

var exportHeaders = []string{
	"Folio", "Estado", "Nombre", "RUT", "Dirección", "Email", "Teléfono",
	"Medio de pago", "Comentario", "Validador", "Solicitado", "Actualizado", "Certificado",
}

type ExportService struct {
	ledger history.Repository
}

func NewExportService(ledger history.Repository) *ExportService {
	return &ExportService{ledger: ledger}
}

// HistoryXLSX renders the ledger, newest change first, as a workbook.
func (s *ExportService) HistoryXLSX(ctx context.Context, params *history.FindParams) ([]byte, error) {
	records, err := s.ledger.List(ctx, params)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, errors.Wrap(err, "rename sheet")
	}
	header := make([]any, len(exportHeaders))
	for i, h := range exportHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
		return nil, errors.Wrap(err, "write header")
	}

	for i, rec := range records {
		validator := ""
		if rec.ValidatorID != nil {
			validator = fmt.Sprint(*rec.ValidatorID)
		}
		row := []any{
			rec.Folio,
			string(rec.State),
			rec.RequestorName,
			rec.NationalID,
			rec.Address,
			rec.Email,
			rec.Phone,
			string(rec.PaymentMethod),
			rec.Comment,
			validator,
			rec.RequestedAt.Format("2006-01-02 15:04"),
			rec.ChangedAt.Format("2006-01-02 15:04"),
			rec.DocumentURL,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, errors.Wrap(err, "cell name")
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, errors.Wrapf(err, "write row %d", i+2)
		}
	}
	if err := f.SetPanes(exportSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return nil, errors.Wrap(err, "freeze header")
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, errors.Wrap(err, "write workbook")
	}
	return buf.Bytes(), nil
}
