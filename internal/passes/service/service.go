package passes

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-passes/internal/kafka"
	"ms-passes/internal/logger"
	"ms-passes/internal/models"
	"ms-passes/internal/passes/codegen"
	passdb "ms-passes/internal/passes/db"
	"ms-passes/internal/passes/template"
)

// DefaultCellCM is the QR cell edge used when an event does not set one.
const DefaultCellCM = 3.0

var (
	ErrInvalidEvent  = errors.New("invalid event")
	ErrEventNotFound = errors.New("event not found")
)

type PassDBLayer interface {
	InTx(ctx context.Context, fn func(ctx context.Context) error) error

	CreateEvent(ctx context.Context, event *models.Event) error
	GetEventByID(ctx context.Context, id int64) (*models.Event, error)
	ListEvents(ctx context.Context) ([]models.Event, error)
	DeleteEvent(ctx context.Context, id int64) error
	LockEvent(ctx context.Context, id int64) error
	ListEventUsage(ctx context.Context) ([]passdb.EventUsage, error)

	InsertPassIfAbsent(ctx context.Context, eventID int64, code string) (bool, error)
	GetPassByCode(ctx context.Context, code string) (*models.Pass, error)
	ListPassesByEvent(ctx context.Context, eventID int64) ([]models.Pass, error)
	CountPassesByEvent(ctx context.Context, eventID int64) (int, error)
	ConditionalIncrementPass(ctx context.Context, code string) (bool, int, error)
	SumUsedCount(ctx context.Context, eventID int64) (int, error)
}

// Topics names the Kafka topics the service publishes to.
type Topics struct {
	PassesGenerated string
	PassRedeemed    string
}

type PassService struct {
	DB        PassDBLayer
	Codes     codegen.Source
	Publisher kafka.Publisher
	Topics    Topics
	Sheets    *template.SheetPDFGenerator
	Logger    *logger.Logger
	// MaxAttempts bounds the codes tried per pass before generation gives up.
	MaxAttempts int

	now func() time.Time
}

func NewPassService(db PassDBLayer, publisher kafka.Publisher, sheets *template.SheetPDFGenerator, log *logger.Logger) *PassService {
	if publisher == nil {
		publisher = kafka.NopPublisher{}
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &PassService{
		DB:          db,
		Codes:       codegen.NewGenerator(),
		Publisher:   publisher,
		Topics:      Topics{PassesGenerated: kafka.TopicPassesGenerated, PassRedeemed: kafka.TopicPassRedeemed},
		Sheets:      sheets,
		Logger:      log,
		MaxAttempts: codegen.DefaultMaxAttempts,
		now:         time.Now,
	}
}

func (s *PassService) CreateEvent(ctx context.Context, event *models.Event) error {
	event.Name = strings.TrimSpace(event.Name)
	if event.QRWidth == 0 {
		event.QRWidth = DefaultCellCM
	}
	if event.QRHeight == 0 {
		event.QRHeight = DefaultCellCM
	}

	switch {
	case event.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidEvent)
	case event.TotalPasses < 0:
		return fmt.Errorf("%w: total_passes must not be negative", ErrInvalidEvent)
	case event.MaxUses < 1:
		return fmt.Errorf("%w: max_uses must be at least 1", ErrInvalidEvent)
	case event.QRWidth < 0 || event.QRHeight < 0:
		return fmt.Errorf("%w: QR cell size must be positive", ErrInvalidEvent)
	}

	if err := s.DB.CreateEvent(ctx, event); err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	s.Logger.LogPass("CREATE_EVENT", event.ID, fmt.Sprintf("%s: %d passes, %d uses each", event.Name, event.TotalPasses, event.MaxUses))
	return nil
}

func (s *PassService) GetEvent(ctx context.Context, id int64) (*models.Event, error) {
	event, err := s.DB.GetEventByID(ctx, id)
	if errors.Is(err, passdb.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load event %d: %w", id, err)
	}
	return event, nil
}

func (s *PassService) ListEvents(ctx context.Context) ([]models.Event, error) {
	return s.DB.ListEvents(ctx)
}

// DeleteEvent removes an event and every pass issued for it.
func (s *PassService) DeleteEvent(ctx context.Context, id int64) error {
	err := s.DB.DeleteEvent(ctx, id)
	if errors.Is(err, passdb.ErrNotFound) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if err != nil {
		return err
	}
	s.Logger.LogPass("DELETE_EVENT", id, "event and passes deleted")
	return nil
}

func (s *PassService) ListPasses(ctx context.Context, eventID int64) ([]models.Pass, error) {
	if _, err := s.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return s.DB.ListPassesByEvent(ctx, eventID)
}

// RemainingForEvent is the event's capacity minus the redemptions made so far.
func (s *PassService) RemainingForEvent(ctx context.Context, eventID int64) (int, error) {
	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	used, err := s.DB.SumUsedCount(ctx, eventID)
	if err != nil {
		return 0, fmt.Errorf("failed to sum usage of event %d: %w", eventID, err)
	}
	return models.RemainingUses(event.TotalPasses, event.MaxUses, used), nil
}

// Report lists used and remaining redemptions per event.
func (s *PassService) Report(ctx context.Context) ([]models.UsageReport, error) {
	usage, err := s.DB.ListEventUsage(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage: %w", err)
	}

	report := make([]models.UsageReport, 0, len(usage))
	for _, u := range usage {
		report = append(report, models.UsageReport{
			EventID:   u.ID,
			Event:     u.Name,
			Used:      u.Used,
			Remaining: models.RemainingUses(u.TotalPasses, u.MaxUses, u.Used),
		})
	}
	return report, nil
}

func (s *PassService) publish(ctx context.Context, topic, key string, value any) {
	if err := s.Publisher.Publish(ctx, topic, key, value); err != nil {
		s.Logger.Error("KAFKA", fmt.Sprintf("Failed to publish to %s: %v", topic, err))
	}
}

func eventKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
