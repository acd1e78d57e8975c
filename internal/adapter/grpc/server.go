package grpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/simaogato/capitalflow-backend/internal/domain"
	"github.com/simaogato/capitalflow-backend/internal/usecase/capital"
	"github.com/simaogato/capitalflow-backend/internal/usecase/wacc"
)

// Server implements the CapitalService gRPC server
type Server struct {
	HistoryService *capital.HistoryService
	WACCService    *wacc.WACCService
}

var _ CapitalServiceServer = (*Server)(nil)

// NewServer creates a new gRPC server instance
func NewServer(historyService *capital.HistoryService, waccService *wacc.WACCService) *Server {
	return &Server{
		HistoryService: historyService,
		WACCService:    waccService,
	}
}

// AddCapitalSource handles the AddCapitalSource RPC
func (s *Server) AddCapitalSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	name, err := f.requiredString("name")
	if err != nil {
		return nil, err
	}
	rate, err := f.rate("annual_rate")
	if err != nil {
		return nil, mapError(err)
	}
	amount, err := f.cents("available_cents")
	if err != nil {
		return nil, mapError(err)
	}
	// Note: a missing effective_date means "now" on the service clock
	effectiveDate, err := f.instant("effective_date", s.HistoryService.Now())
	if err != nil {
		return nil, err
	}

	input := domain.NewCapitalSource{
		Name:           name,
		AnnualRate:     rate,
		AvailableCents: amount,
	}

	sourceID, err := s.HistoryService.AddSource(ctx, input, effectiveDate, f.str("notes"))
	if err != nil {
		return nil, mapError(err)
	}

	return newStruct(map[string]any{"source_id": string(sourceID)})
}

// UpdateCapitalAmount handles the UpdateCapitalAmount RPC
func (s *Server) UpdateCapitalAmount(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	sourceID, effectiveDate, err := s.target(f)
	if err != nil {
		return nil, err
	}
	amount, err := f.cents("available_cents")
	if err != nil {
		return nil, mapError(err)
	}

	if err := s.HistoryService.UpdateAmount(ctx, sourceID, amount, effectiveDate, f.str("notes")); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// UpdateCapitalRate handles the UpdateCapitalRate RPC
func (s *Server) UpdateCapitalRate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	sourceID, effectiveDate, err := s.target(f)
	if err != nil {
		return nil, err
	}
	rate, err := f.rate("annual_rate")
	if err != nil {
		return nil, mapError(err)
	}

	if err := s.HistoryService.UpdateRate(ctx, sourceID, rate, effectiveDate, f.str("notes")); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// RemoveCapitalSource handles the RemoveCapitalSource RPC
func (s *Server) RemoveCapitalSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	sourceID, effectiveDate, err := s.target(f)
	if err != nil {
		return nil, err
	}

	if err := s.HistoryService.RemoveSource(ctx, sourceID, effectiveDate, f.str("notes")); err != nil {
		return nil, mapError(err)
	}
	return &structpb.Struct{}, nil
}

// GetCapitalHistory handles the GetCapitalHistory RPC
func (s *Server) GetCapitalHistory(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	entries, err := s.HistoryService.History(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return entriesToStruct(entries)
}

// GetHistoryForSource handles the GetHistoryForSource RPC
func (s *Server) GetHistoryForSource(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	sourceID, err := requestFields(req).requiredString("source_id")
	if err != nil {
		return nil, err
	}

	entries, err := s.HistoryService.HistoryForSource(ctx, domain.SourceID(sourceID))
	if err != nil {
		return nil, mapError(err)
	}
	return entriesToStruct(entries)
}

// GetHistoryInDateRange handles the GetHistoryInDateRange RPC
func (s *Server) GetHistoryInDateRange(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	start, err := f.requiredTime("start")
	if err != nil {
		return nil, err
	}
	end, err := f.requiredTime("end")
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, status.Errorf(codes.InvalidArgument, "end must not be before start")
	}

	entries, err := s.HistoryService.HistoryInRange(ctx, start, end)
	if err != nil {
		return nil, mapError(err)
	}
	return entriesToStruct(entries)
}

// GetActiveCapitalSources handles the GetActiveCapitalSources RPC
func (s *Server) GetActiveCapitalSources(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	asOf, err := requestFields(req).instant("as_of_date", s.HistoryService.Now())
	if err != nil {
		return nil, err
	}

	sources, err := s.HistoryService.ActiveSources(ctx, asOf)
	if err != nil {
		return nil, mapError(err)
	}

	list := make([]any, 0, len(sources))
	for _, source := range sources {
		list = append(list, sourceToMap(source))
	}
	return newStruct(map[string]any{"sources": list})
}

// CalculateWACCAtDate handles the CalculateWACCAtDate RPC
func (s *Server) CalculateWACCAtDate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	date, err := requestFields(req).instant("date", s.HistoryService.Now())
	if err != nil {
		return nil, err
	}

	snapshot, err := s.WACCService.SnapshotAt(ctx, date)
	if err != nil {
		return nil, mapError(err)
	}
	return newStruct(snapshotToMap(snapshot))
}

// CalculatePeriodWACC handles the CalculatePeriodWACC RPC
func (s *Server) CalculatePeriodWACC(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	periodType, reference, custom, err := s.periodRequest(f)
	if err != nil {
		return nil, err
	}

	summary, err := s.WACCService.PeriodSummary(ctx, periodType, reference, custom)
	if err != nil {
		return nil, mapError(err)
	}
	return newStruct(summaryToMap(summary))
}

// GetWACCTrendData handles the GetWACCTrendData RPC.
// The request either lists its periods explicitly or names a period_type to generate them.
func (s *Server) GetWACCTrendData(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	f := requestFields(req)

	periods, err := f.periods()
	if err != nil {
		return nil, mapError(err)
	}
	if periods == nil {
		periodType, reference, custom, err := s.periodRequest(f)
		if err != nil {
			return nil, err
		}
		periods, err = domain.GeneratePeriods(periodType, reference, custom)
		if err != nil {
			return nil, mapError(err)
		}
	}

	points, err := s.WACCService.Trend(ctx, periods)
	if err != nil {
		return nil, mapError(err)
	}

	list := make([]any, 0, len(points))
	for _, p := range points {
		list = append(list, trendPointToMap(p))
	}
	return newStruct(map[string]any{"points": list})
}

// target reads the source_id and effective_date shared by the update RPCs
func (s *Server) target(f fields) (domain.SourceID, time.Time, error) {
	sourceID, err := f.requiredString("source_id")
	if err != nil {
		return "", time.Time{}, err
	}
	effectiveDate, err := f.instant("effective_date", s.HistoryService.Now())
	if err != nil {
		return "", time.Time{}, err
	}
	return domain.SourceID(sourceID), effectiveDate, nil
}

func (s *Server) periodRequest(f fields) (domain.PeriodType, time.Time, *domain.DateRange, error) {
	periodType, err := domain.ParsePeriodType(f.str("period_type"))
	if err != nil {
		return "", time.Time{}, nil, mapError(err)
	}
	reference, err := f.instant("reference_date", s.HistoryService.Now())
	if err != nil {
		return "", time.Time{}, nil, err
	}
	custom, err := f.customRange()
	if err != nil {
		return "", time.Time{}, nil, err
	}
	return periodType, reference, custom, nil
}

// mapError converts domain errors to gRPC status errors
func mapError(err error) error {
	if err == nil {
		return nil
	}
	errorMsg := err.Error()

	switch {
	case errors.Is(err, domain.ErrFutureDate),
		errors.Is(err, domain.ErrInvalidAmount),
		errors.Is(err, domain.ErrInvalidRate),
		errors.Is(err, domain.ErrInvalidName),
		errors.Is(err, domain.ErrInvalidSource),
		errors.Is(err, domain.ErrInvalidAction),
		errors.Is(err, domain.ErrInvalidPeriod):
		return status.Errorf(codes.InvalidArgument, "%s", errorMsg)
	case errors.Is(err, domain.ErrSourceNotFound):
		return status.Errorf(codes.NotFound, "%s", errorMsg)
	case errors.Is(err, domain.ErrOutOfOrder):
		return status.Errorf(codes.FailedPrecondition, "%s", errorMsg)
	case errors.Is(err, domain.ErrStorageUnavailable):
		return status.Errorf(codes.Unavailable, "%s", errorMsg)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s", errorMsg)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s", errorMsg)
	}

	// Already a status, e.g. a request decoding error
	if _, ok := status.FromError(err); ok {
		return err
	}

	// Default to Internal error for unknown errors
	return status.Errorf(codes.Internal, "%s", errorMsg)
}
