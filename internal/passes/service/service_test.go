package passes_test

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"ms-passes/internal/database/migrations"
	"ms-passes/internal/models"
	"ms-passes/internal/passes/codegen"
	passdb "ms-passes/internal/passes/db"
	"ms-passes/internal/passes/layout"
	qr "ms-passes/internal/passes/qr_generator"
	passes "ms-passes/internal/passes/service"
	"ms-passes/internal/passes/template"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// MockPublisher records published events
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, topic, key string, value any) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	return nil
}

type constantCodes string

func (c constantCodes) Generate() (string, error) {
	return string(c), nil
}

func setupStore(t *testing.T) *passdb.DB {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	bunDB := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, migrations.Run(bunDB, nil))
	return &passdb.DB{Bun: bunDB}
}

func newService(t *testing.T, publisher *MockPublisher) *passes.PassService {
	sheets := template.NewSheetPDFGenerator(qr.NewQRGenerator(), template.DefaultFonts())
	if publisher == nil {
		return passes.NewPassService(setupStore(t), nil, sheets, nil)
	}
	return passes.NewPassService(setupStore(t), publisher, sheets, nil)
}

func createEvent(t *testing.T, svc *passes.PassService, name string, total, maxUses int) *models.Event {
	event := &models.Event{Name: name, Date: "2024-06-01", TotalPasses: total, MaxUses: maxUses}
	require.NoError(t, svc.CreateEvent(context.Background(), event))
	return event
}

func TestCreateEventValidates(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()

	for _, event := range []*models.Event{
		{Name: "", TotalPasses: 1, MaxUses: 1},
		{Name: "Expo", TotalPasses: -1, MaxUses: 1},
		{Name: "Expo", TotalPasses: 1, MaxUses: 0},
		{Name: "Expo", TotalPasses: 1, MaxUses: 1, QRWidth: -2},
	} {
		assert.ErrorIs(t, svc.CreateEvent(ctx, event), passes.ErrInvalidEvent)
	}

	event := createEvent(t, svc, "Expo", 0, 1)
	assert.Equal(t, passes.DefaultCellCM, event.QRWidth)
	assert.Equal(t, passes.DefaultCellCM, event.QRHeight)
}

func TestTechFestScenario(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Tech Fest", 3, 2)

	result, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)

	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	seen := map[string]bool{}
	for _, p := range list {
		assert.True(t, codegen.Valid(p.Code))
		seen[p.Code] = true
	}
	assert.Len(t, seen, 3)

	code := list[0].Code

	r, err := svc.Redeem(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, passes.RedemptionAllowed, r.Status)
	assert.Equal(t, 1, r.Remaining)
	assert.Equal(t, "Entry Allowed. Remaining uses: 1", r.Message())

	r, err = svc.Redeem(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, passes.RedemptionAllowed, r.Status)
	assert.Equal(t, 0, r.Remaining)

	r, err = svc.Redeem(ctx, code)
	require.NoError(t, err)
	assert.Equal(t, passes.RedemptionExhausted, r.Status)
	assert.Equal(t, "Pass fully used", r.Message())

	remaining, err := svc.RemainingForEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, remaining)

	report, err := svc.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report, 1)
	assert.Equal(t, models.UsageReport{EventID: event.ID, Event: "Tech Fest", Used: 2, Remaining: 4}, report[0])
}

func TestRedeemUnknownCodeIsInvalid(t *testing.T) {
	svc := newService(t, nil)

	r, err := svc.Redeem(context.Background(), "ZZZZ")
	require.NoError(t, err)
	assert.Equal(t, passes.RedemptionInvalid, r.Status)
	assert.Equal(t, "Invalid Pass", r.Message())
}

func TestRedeemNormalizesTypedCode(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 1, 1)
	svc.Codes = constantCodes("AB12")
	_, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)

	r, err := svc.Redeem(ctx, "  ab12 ")
	require.NoError(t, err)
	assert.True(t, r.Allowed())
	assert.Equal(t, "AB12", r.Code)
}

func TestConcurrentRedemptionsNeverOverRedeem(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	const maxUses, attempts = 5, 25
	event := createEvent(t, svc, "Gate Rush", 1, maxUses)
	_, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)
	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)
	code := list[0].Code

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		counts = map[passes.RedemptionStatus]int{}
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.Redeem(ctx, code)
			assert.NoError(t, err)
			mu.Lock()
			counts[r.Status]++
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, maxUses, counts[passes.RedemptionAllowed])
	assert.Equal(t, attempts-maxUses, counts[passes.RedemptionExhausted])

	remaining, err := svc.RemainingForEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, remaining)
}

func TestRemainingMatchesCapacityMinusUsage(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 4, 3)
	_, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)
	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	used := 0
	for i := 0; i < 30; i++ {
		r, err := svc.Redeem(ctx, list[rng.IntN(len(list))].Code)
		require.NoError(t, err)
		if r.Allowed() {
			used++
		}

		remaining, err := svc.RemainingForEvent(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, 4*3-used, remaining)
	}
}

func TestReportAndRemainingAgree(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	full := createEvent(t, svc, "Expo", 2, 3)
	partial := createEvent(t, svc, "Gala", 4, 2)

	_, err := svc.GeneratePasses(ctx, full.ID)
	require.NoError(t, err)
	svc.Codes = constantCodes("GA01")
	_, err = svc.GeneratePasses(ctx, partial.ID)
	require.Error(t, err, "only one of the four Gala passes can be created")

	list, err := svc.ListPasses(ctx, full.ID)
	require.NoError(t, err)
	for range 2 {
		_, err := svc.Redeem(ctx, list[0].Code)
		require.NoError(t, err)
	}
	_, err = svc.Redeem(ctx, "GA01")
	require.NoError(t, err)

	report, err := svc.Report(ctx)
	require.NoError(t, err)
	require.Len(t, report, 2)
	for _, row := range report {
		remaining, err := svc.RemainingForEvent(ctx, row.EventID)
		require.NoError(t, err)
		assert.Equal(t, remaining, row.Remaining, "event %s", row.Event)
	}
	assert.Equal(t, 2*3-2, report[0].Remaining)
	assert.Equal(t, 4*2-1, report[1].Remaining)
}

func TestGeneratePassesTopsUpOnly(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 5, 1)

	first, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, passes.GenerationResult{EventID: event.ID, Requested: 5, Created: 5, Total: 5}, first)

	again, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Created)
	assert.Equal(t, 5, again.Total)
}

func TestConcurrentGenerationCreatesExactlyTotalPasses(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	const total, callers = 30, 8
	event := createEvent(t, svc, "Expo", total, 1)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.GeneratePasses(ctx, event.ID)
			assert.NoError(t, err)
			mu.Lock()
			created += result.Created
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, total, created)
	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, total)
}

func TestGeneratePassesReportsPartialBatch(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 3, 1)
	svc.Codes = constantCodes("AAAA")

	result, err := svc.GeneratePasses(ctx, event.ID)

	var genErr *passes.GenerationError
	require.ErrorAs(t, err, &genErr)
	assert.ErrorIs(t, err, codegen.ErrCodeSpaceExhausted)
	assert.Equal(t, 3, genErr.Requested)
	assert.Equal(t, 1, genErr.Created)
	assert.Equal(t, 1, result.Created)

	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestGenerateForUnknownEvent(t *testing.T) {
	svc := newService(t, nil)

	_, err := svc.GeneratePasses(context.Background(), 99)
	assert.ErrorIs(t, err, passes.ErrEventNotFound)
}

func TestRedeemPublishesAndSurvivesPublisherFailure(t *testing.T) {
	publisher := new(MockPublisher)
	svc := newService(t, publisher)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 1, 1)
	svc.Codes = constantCodes("AB12")

	publisher.On("Publish", mock.Anything, svc.Topics.PassesGenerated, fmt.Sprint(event.ID), mock.AnythingOfType("models.PassesGeneratedEvent")).
		Return(nil).Once()
	_, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)

	publisher.On("Publish", mock.Anything, svc.Topics.PassRedeemed, "AB12", mock.MatchedBy(func(e models.PassRedeemedEvent) bool {
		return e.EventID == event.ID && e.UsedCount == 1 && e.Remaining == 0
	})).Return(errors.New("broker down")).Once()

	r, err := svc.Redeem(ctx, "AB12")
	require.NoError(t, err)
	assert.True(t, r.Allowed())

	// Rejections are not published.
	r, err = svc.Redeem(ctx, "AB12")
	require.NoError(t, err)
	assert.Equal(t, passes.RedemptionExhausted, r.Status)

	publisher.AssertExpectations(t)
	publisher.AssertNumberOfCalls(t, "Publish", 2)
}

func TestDeleteEvent(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Expo", 2, 1)
	_, err := svc.GeneratePasses(ctx, event.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEvent(ctx, event.ID))
	assert.ErrorIs(t, svc.DeleteEvent(ctx, event.ID), passes.ErrEventNotFound)

	report, err := svc.Report(ctx)
	require.NoError(t, err)
	assert.Empty(t, report)
}

func TestExportSheet(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := createEvent(t, svc, "Spring Gala 2024", 13, 1)

	var buf bytes.Buffer
	filename, err := svc.ExportSheet(ctx, event.ID, layout.FixedGrid(), &buf)
	require.NoError(t, err)
	assert.Equal(t, "Spring_Gala_2024_passes.pdf", filename)
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))

	// Exporting generated the passes.
	list, err := svc.ListPasses(ctx, event.ID)
	require.NoError(t, err)
	assert.Len(t, list, 13)
}

func TestExportSheetRejectsOversizedCells(t *testing.T) {
	svc := newService(t, nil)
	ctx := context.Background()
	event := &models.Event{Name: "Poster", TotalPasses: 1, MaxUses: 1, QRWidth: 25, QRHeight: 25}
	require.NoError(t, svc.CreateEvent(ctx, event))

	var buf bytes.Buffer
	_, err := svc.ExportSheet(ctx, event.ID, layout.MarginFlow(), &buf)
	assert.ErrorIs(t, err, layout.ErrCellTooLarge)
	assert.Zero(t, buf.Len())
}
