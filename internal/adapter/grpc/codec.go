package grpc

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/simaogato/capitalflow-backend/internal/usecase/wacc"
)

// fields reads typed values out of a request struct.
// Cents and rates travel as decimal strings, instants as RFC 3339 strings.
type fields map[string]*structpb.Value

func requestFields(req *structpb.Struct) fields {
	if req == nil {
		return fields{}
	}
	return req.GetFields()
}

func (f fields) has(key string) bool {
	v, ok := f[key]
	if !ok {
		return false
	}
	_, isNull := v.GetKind().(*structpb.Value_NullValue)
	return !isNull
}

// str accepts string and number values; numbers are rendered without exponent
func (f fields) str(key string) string {
	v, ok := f[key]
	if !ok {
		return ""
	}
	switch kind := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return kind.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(kind.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

func (f fields) requiredString(key string) (string, error) {
	s := f.str(key)
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return s, nil
}

// instant parses an RFC 3339 instant, returning fallback when the field is absent
func (f fields) instant(key string, fallback time.Time) (time.Time, error) {
	s := f.str(key)
	if s == "" {
		return fallback, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "invalid %s format: %v", key, err)
	}
	return t, nil
}

func (f fields) requiredTime(key string) (time.Time, error) {
	if _, err := f.requiredString(key); err != nil {
		return time.Time{}, err
	}
	return f.instant(key, time.Time{})
}

// cents only accepts decimal strings; Struct numbers are float64 and lose int64 precision
func (f fields) cents(key string) (domain.Cents, error) {
	if _, isNumber := f[key].GetKind().(*structpb.Value_NumberValue); isNumber {
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a decimal string", key)
	}
	s, err := f.requiredString(key)
	if err != nil {
		return 0, err
	}
	return domain.ParseCents(s)
}

func (f fields) rate(key string) (decimal.Decimal, error) {
	s, err := f.requiredString(key)
	if err != nil {
		return decimal.Zero, err
	}
	return domain.ParseRate(s)
}

// customRange reads the optional custom_start/custom_end pair
func (f fields) customRange() (*domain.DateRange, error) {
	if !f.has("custom_start") && !f.has("custom_end") {
		return nil, nil
	}
	start, err := f.requiredTime("custom_start")
	if err != nil {
		return nil, err
	}
	end, err := f.requiredTime("custom_end")
	if err != nil {
		return nil, err
	}
	r := domain.NewDateRange(start, end)
	return &r, nil
}

// periods reads an explicit "periods" list of {start, end, label?} objects
func (f fields) periods() ([]domain.DateRange, error) {
	list := f["periods"].GetListValue()
	if list == nil {
		return nil, nil
	}
	out := make([]domain.DateRange, 0, len(list.GetValues()))
	for i, v := range list.GetValues() {
		obj := v.GetStructValue()
		if obj == nil {
			return nil, status.Errorf(codes.InvalidArgument, "periods[%d] must be an object", i)
		}
		pf := requestFields(obj)
		start, err := pf.requiredTime("start")
		if err != nil {
			return nil, err
		}
		end, err := pf.requiredTime("end")
		if err != nil {
			return nil, err
		}
		if end.Before(start) {
			return nil, fmt.Errorf("%w: periods[%d] ends before it starts", domain.ErrInvalidPeriod, i)
		}
		r := domain.NewDateRange(start, end)
		if label := pf.str("label"); label != "" {
			r.Label = label
		}
		out = append(out, r)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.Format(time.RFC3339Nano)
}

func formatCents(c domain.Cents) string {
	return strconv.FormatInt(int64(c), 10)
}

func entryToMap(e domain.CapitalSourceHistoryEntry) map[string]any {
	m := map[string]any{
		"id":              e.ID.String(),
		"sequence":        float64(e.Sequence),
		"source_id":       string(e.SourceID),
		"effective_date":  formatTime(e.EffectiveDate),
		"name":            e.Name,
		"annual_rate":     e.AnnualRate.String(),
		"available_cents": formatCents(e.AvailableCents),
		"action":          string(e.Action),
		"notes":           e.Notes,
	}
	if e.PreviousRate.Valid {
		m["previous_rate"] = e.PreviousRate.Decimal.String()
	}
	if e.PreviousAmount.Valid {
		m["previous_amount_cents"] = formatCents(e.PreviousAmount.Cents)
	}
	return m
}

func sourceToMap(s domain.CapitalSource) map[string]any {
	return map[string]any{
		"source_id":       string(s.SourceID),
		"name":            s.Name,
		"annual_rate":     s.AnnualRate.String(),
		"available_cents": formatCents(s.AvailableCents),
		"used_cents":      formatCents(s.UsedCents),
		"remaining_cents": formatCents(s.RemainingCents),
	}
}

func snapshotToMap(s *domain.WACCSnapshot) map[string]any {
	sources := make([]any, 0, len(s.Sources))
	for _, src := range s.Sources {
		sources = append(sources, sourceToMap(src))
	}
	return map[string]any{
		"date":                formatTime(s.Date),
		"wacc":                s.WACC.String(),
		"total_capital_cents": formatCents(s.TotalCapitalCents),
		"sources":             sources,
	}
}

func trendPointToMap(p wacc.TrendPoint) map[string]any {
	return map[string]any{
		"period":              p.Period,
		"start":               formatTime(p.Start),
		"end":                 formatTime(p.End),
		"wacc":                p.WACC.String(),
		"total_capital_cents": formatCents(p.TotalCapitalCents),
	}
}

func summaryToMap(s *wacc.PeriodSummary) map[string]any {
	return map[string]any{
		"from":    formatTime(s.From),
		"to":      formatTime(s.To),
		"start":   s.Start.String(),
		"end":     s.End.String(),
		"average": s.Average.String(),
	}
}

func entriesToStruct(entries []domain.CapitalSourceHistoryEntry) (*structpb.Struct, error) {
	list := make([]any, 0, len(entries))
	for _, e := range entries {
		list = append(list, entryToMap(e))
	}
	return newStruct(map[string]any{"entries": list})
}

func newStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}
