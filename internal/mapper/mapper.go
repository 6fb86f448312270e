package mapper

import (
	"fmt"
	"log/slog"
	"strconv"

	"fidcetl/internal/errors"
	"fidcetl/pkg/contracts/domain"
)

// Mapper turns raw filings into flat FundRecords.
type Mapper struct {
	logger *slog.Logger
}

// New creates a mapper.
func New(logger *slog.Logger) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{logger: logger}
}

// Map extracts every schema field from the filing. One filing may yield
// several records when it carries multiple sub-fund blocks under the same
// parent CNPJ. A malformed optional field degrades to absent with a
// recorded warning; a missing identification key is a hard MappingError.
func (m *Mapper) Map(id domain.FundID, raw []byte) ([]domain.FundRecord, []domain.ParseWarning, error) {
	if id.Name == "" {
		return nil, nil, errors.NewMappingError(id.CNPJ, "name", errors.ErrRequiredFieldMissing)
	}

	docs, err := Parse(raw)
	if err != nil {
		return nil, nil, errors.NewMappingError(id.CNPJ, "", err)
	}

	records := make([]domain.FundRecord, 0, len(docs))
	var warnings []domain.ParseWarning

	for i, doc := range docs {
		rec, w, err := m.mapOne(id, doc, i, len(docs) > 1)
		if err != nil {
			return nil, nil, err
		}
		records = append(records, rec)
		warnings = append(warnings, w...)
	}

	m.logger.Debug("filing mapped",
		slog.String("cnpj", id.CNPJ),
		slog.Int("records", len(records)),
		slog.Int("warnings", len(warnings)))

	return records, warnings, nil
}

func (m *Mapper) mapOne(id domain.FundID, doc *Document, ordinal int, multi bool) (domain.FundRecord, []domain.ParseWarning, error) {
	rec := domain.FundRecord{ID: id}
	if multi {
		rec.ID.Class = doc.Class()
		if rec.ID.Class == "" {
			rec.ID.Class = strconv.Itoa(ordinal + 1)
		}
	}

	var warnings []domain.ParseWarning

	for _, f := range domain.Schema() {
		raw, found := doc.Lookup(f.Path)

		switch f.Kind {
		case domain.KindString:
			value := raw
			if f.Required && value == "" {
				// The entity key from the input list backs a filing that
				// omits its own CNPJ node.
				value = id.CNPJ
			}
			if f.Required && value == "" {
				return domain.FundRecord{}, nil,
					errors.NewMappingError(id.CNPJ, f.Name, errors.ErrRequiredFieldMissing)
			}
			f.SetString(&rec, value)

		case domain.KindAmount:
			if !found {
				f.SetAmount(&rec, domain.Absent)
				continue
			}
			a, err := ParseDecimal(raw)
			if err != nil {
				warnings = append(warnings, domain.ParseWarning{
					Key:   rec.Key(),
					Field: f.Name,
					Raw:   raw,
				})
				m.logger.Warn("malformed optional field degraded to absent",
					slog.String("cnpj", id.CNPJ),
					slog.String("field", f.Name),
					slog.String("raw", raw))
				f.SetAmount(&rec, domain.Absent)
				continue
			}
			if f.Group == "reported" && a.Valid {
				// Filings report ratios as percentages; the record carries
				// fractions.
				a = domain.AmountOf(a.Value / 100)
			}
			f.SetAmount(&rec, a)
		}
	}

	if rec.FundCNPJ != id.CNPJ && rec.FundCNPJ != "" {
		normalized := CleanCNPJ(rec.FundCNPJ)
		switch {
		case rec.ID.CNPJ == "":
			// Input list gave no code; adopt the filing's own.
			rec.ID.CNPJ = normalized
		case normalized != id.CNPJ:
			return domain.FundRecord{}, nil, errors.NewMappingError(id.CNPJ, "fund_cnpj",
				fmt.Errorf("filing is for %s", normalized))
		}
		rec.FundCNPJ = normalized
	}

	return rec, warnings, nil
}
