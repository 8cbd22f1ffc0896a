package oddsserver

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/odds/internal/catalog"
	"github.com/cory-johannsen/odds/internal/dice"
	"github.com/cory-johannsen/odds/internal/distribution"
	"github.com/cory-johannsen/odds/internal/report"
	"github.com/cory-johannsen/odds/internal/storage/postgres"
)

// MaxRollMany bounds the count accepted by RollMany.
const MaxRollMany = 10_000

// MaxHistory bounds the "limit" accepted by History.
const MaxHistory = 1000

const defaultHistoryLimit = 20

// DistributionStore caches evaluated distributions by display form.
// *postgres.DistributionRepository satisfies it.
type DistributionStore interface {
	Get(ctx context.Context, expr string) (postgres.DistributionRecord, error)
	Save(ctx context.Context, expr string, d distribution.Distribution) (postgres.DistributionRecord, error)
}

// RollStore records and reads back roll history. *postgres.RollRepository
// satisfies it.
type RollStore interface {
	Record(ctx context.Context, distributionID uuid.UUID, value int) (postgres.RollRecord, error)
	History(ctx context.Context, distributionID uuid.UUID, limit int) ([]postgres.RollRecord, error)
	Frequencies(ctx context.Context, distributionID uuid.UUID) (map[int]int64, error)
}

// Service implements OddsServiceServer.
type Service struct {
	eval   *dice.LoggedEvaluator
	src    dice.Source
	logger *zap.Logger

	// Injected after construction. nil disables the feature.
	Catalog *catalog.Catalog
	Store   DistributionStore
	Rolls   RollStore
}

var _ OddsServiceServer = (*Service)(nil)

// NewService creates a Service.
//
// Precondition: eval, src, and logger must be non-nil.
func NewService(eval *dice.LoggedEvaluator, src dice.Source, logger *zap.Logger) *Service {
	if eval == nil || src == nil || logger == nil {
		panic("oddsserver: NewService requires non-nil evaluator, source, and logger")
	}
	return &Service{eval: eval, src: src, logger: logger}
}

// evaluated is a resolved request.
type evaluated struct {
	expr   string
	dist   distribution.Distribution
	id     uuid.UUID
	cached bool
}

// resolve turns a request's "expression" or "catalog_id" into a
// distribution, consulting the store first when one is configured.
func (s *Service) resolve(ctx context.Context, req *structpb.Struct) (evaluated, error) {
	fields := req.GetFields()
	var (
		expr dice.Expression
		err  error
	)
	switch {
	case fields["catalog_id"].GetStringValue() != "":
		id := fields["catalog_id"].GetStringValue()
		if s.Catalog == nil {
			return evaluated{}, status.Error(codes.FailedPrecondition, "no catalog is loaded")
		}
		roll, ok := s.Catalog.Get(id)
		if !ok {
			return evaluated{}, status.Errorf(codes.NotFound, "no catalog roll %q", id)
		}
		expr = roll.Parsed
	case fields["expression"].GetStringValue() != "":
		expr, err = dice.Parse(fields["expression"].GetStringValue())
		if err != nil {
			return evaluated{}, status.Error(codes.InvalidArgument, err.Error())
		}
	default:
		return evaluated{}, status.Error(codes.InvalidArgument, `request needs "expression" or "catalog_id"`)
	}

	out := evaluated{expr: expr.String()}
	if s.Store != nil {
		rec, err := s.Store.Get(ctx, out.expr)
		switch {
		case err == nil:
			out.dist, out.id, out.cached = rec.Distribution, rec.ID, true
			return out, nil
		case !errors.Is(err, postgres.ErrDistributionNotFound):
			s.logger.Warn("distribution cache read failed", zap.String("expression", out.expr), zap.Error(err))
		}
	}

	out.dist, err = s.eval.Distribution(expr)
	if err != nil {
		return evaluated{}, evalStatus(err)
	}

	if s.Store != nil {
		rec, err := s.Store.Save(ctx, out.expr, out.dist)
		if err != nil {
			s.logger.Warn("distribution cache write failed", zap.String("expression", out.expr), zap.Error(err))
		} else {
			out.id = rec.ID
		}
	}
	return out, nil
}

// evalStatus maps evaluation failures to gRPC status codes.
func evalStatus(err error) error {
	switch {
	case errors.Is(err, distribution.ErrCombinationLimit):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, distribution.ErrNegativeCount),
		errors.Is(err, distribution.ErrKeepTooFew),
		errors.Is(err, distribution.ErrNegativeKeep),
		errors.Is(err, distribution.ErrDivideByZero):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// Evaluate returns the distribution as produced by report.Struct, plus
// "cached" and, when stored, "id".
func (s *Service) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ev, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	out := report.Struct(ev.expr, ev.dist)
	out.Fields["cached"] = structpb.NewBoolValue(ev.cached)
	if ev.id != uuid.Nil {
		out.Fields["id"] = structpb.NewStringValue(ev.id.String())
	}
	return out, nil
}

func (s *Service) roll(ctx context.Context, ev evaluated) *structpb.Struct {
	v := dice.Draw(ev.dist, s.src)
	p := ev.dist.Probability(v)
	pf, _ := p.Float64()

	if s.Rolls != nil && ev.id != uuid.Nil {
		if _, err := s.Rolls.Record(ctx, ev.id, v); err != nil {
			s.logger.Warn("recording roll failed", zap.String("expression", ev.expr), zap.Error(err))
		}
	}
	s.logger.Debug("dice roll",
		zap.String("expression", ev.expr),
		zap.Int("value", v),
		zap.String("probability", p.RatString()),
	)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"expression":        structpb.NewStringValue(ev.expr),
		"value":             structpb.NewNumberValue(float64(v)),
		"probability":       structpb.NewStringValue(p.RatString()),
		"probability_float": structpb.NewNumberValue(pf),
	}}
}

// Roll draws one value: {"expression", "value", "probability", "probability_float"}.
func (s *Service) Roll(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	ev, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.roll(ctx, ev), nil
}

// RollMany streams req["count"] rolls.
func (s *Service) RollMany(req *structpb.Struct, stream OddsService_RollManyServer) error {
	count := int(req.GetFields()["count"].GetNumberValue())
	if count < 1 || count > MaxRollMany {
		return status.Errorf(codes.InvalidArgument, "count must be 1-%d, got %d", MaxRollMany, count)
	}
	ctx := stream.Context()
	ev, err := s.resolve(ctx, req)
	if err != nil {
		return err
	}
	for i := 0; i < count; i++ {
		if err := ctx.Err(); err != nil {
			return status.FromContextError(err).Err()
		}
		if err := stream.Send(s.roll(ctx, ev)); err != nil {
			return err
		}
	}
	return nil
}

// History compares the recorded rolls of a distribution with its exact
// probabilities. The response holds "expression", "id", "observed" (rolls
// recorded), "values" [{value, rolled, observed_fraction, probability,
// probability_float}] over the distribution's support, and "recent", the
// last req["limit"] rolled values, newest first.
func (s *Service) History(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if s.Store == nil || s.Rolls == nil {
		return nil, status.Error(codes.FailedPrecondition, "roll history needs a database")
	}
	limit := defaultHistoryLimit
	if v, ok := req.GetFields()["limit"]; ok {
		limit = int(v.GetNumberValue())
	}
	if limit < 0 || limit > MaxHistory {
		return nil, status.Errorf(codes.InvalidArgument, "limit must be 0-%d, got %d", MaxHistory, limit)
	}
	ev, err := s.resolve(ctx, req)
	if err != nil {
		return nil, err
	}
	if ev.id == uuid.Nil {
		return nil, status.Errorf(codes.Unavailable, "distribution %q could not be stored", ev.expr)
	}

	freq, err := s.Rolls.Frequencies(ctx, ev.id)
	if err != nil {
		s.logger.Warn("reading roll frequencies failed", zap.String("expression", ev.expr), zap.Error(err))
		return nil, status.Error(codes.Unavailable, err.Error())
	}
	var observed int64
	for _, n := range freq {
		observed += n
	}

	values := make([]*structpb.Value, 0)
	for _, r := range report.Rows(ev.dist) {
		rolled := freq[r.Value]
		var fraction float64
		if observed > 0 {
			fraction = float64(rolled) / float64(observed)
		}
		pf, _ := r.Probability.Float64()
		values = append(values, structpb.NewStructValue(&structpb.Struct{Fields: map[string]*structpb.Value{
			"value":             structpb.NewNumberValue(float64(r.Value)),
			"rolled":            structpb.NewNumberValue(float64(rolled)),
			"observed_fraction": structpb.NewNumberValue(fraction),
			"probability":       structpb.NewStringValue(r.Probability.RatString()),
			"probability_float": structpb.NewNumberValue(pf),
		}}))
	}

	recent := make([]*structpb.Value, 0, limit)
	if limit > 0 {
		history, err := s.Rolls.History(ctx, ev.id, limit)
		if err != nil {
			s.logger.Warn("reading roll history failed", zap.String("expression", ev.expr), zap.Error(err))
			return nil, status.Error(codes.Unavailable, err.Error())
		}
		for _, rec := range history {
			recent = append(recent, structpb.NewNumberValue(float64(rec.Value)))
		}
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"expression": structpb.NewStringValue(ev.expr),
		"id":         structpb.NewStringValue(ev.id.String()),
		"observed":   structpb.NewNumberValue(float64(observed)),
		"values":     structpb.NewListValue(&structpb.ListValue{Values: values}),
		"recent":     structpb.NewListValue(&structpb.ListValue{Values: recent}),
	}}, nil
}

// ListCatalog returns {"rolls": [{id, name, expression, description, mean}]}.
// Rolls that fail to evaluate carry "error" instead of "mean".
func (s *Service) ListCatalog(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	rolls := make([]*structpb.Value, 0)
	if s.Catalog != nil {
		for _, r := range s.Catalog.All() {
			fields := map[string]*structpb.Value{
				"id":          structpb.NewStringValue(r.ID),
				"name":        structpb.NewStringValue(r.Name),
				"expression":  structpb.NewStringValue(r.Parsed.String()),
				"description": structpb.NewStringValue(r.Description),
			}
			d, err := s.eval.Distribution(r.Parsed)
			if err != nil {
				fields["error"] = structpb.NewStringValue(err.Error())
			} else {
				fields["mean"] = structpb.NewNumberValue(d.Mean())
			}
			rolls = append(rolls, structpb.NewStructValue(&structpb.Struct{Fields: fields}))
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"rolls": structpb.NewListValue(&structpb.ListValue{Values: rolls}),
	}}, nil
}
