package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"requisiciones/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextRequisitionNumberSequence(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	want := []string{"REQ-000001", "REQ-000002", "REQ-000003", "REQ-000004", "REQ-000005"}
	for _, w := range want {
		got, err := f.numbering.NextRequisitionNumber(ctx)
		require.NoError(t, err)
		assert.Equal(t, w, got)
	}

	partida, err := f.numbering.NextPartidaNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PNP-000001", partida, "partidas keep their own counter")

	counters, err := f.numbering.Counters(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), counters.UltimoNumeroRequisicion)
	assert.Equal(t, int64(1), counters.UltimoNumeroPartida)
	assert.Equal(t, "memory", counters.SequenceBackend)
}

func TestNextNumberStorageFailure(t *testing.T) {
	f := newFixture(t, false)
	f.st.failIncrement = true

	_, err := f.numbering.NextRequisitionNumber(context.Background())
	var storageErr *StorageError
	require.True(t, errors.As(err, &storageErr))
	assert.ErrorIs(t, err, errStoreDown)
}

func TestCommitteeNumberForCalendarDays(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	morning := time.Date(2026, 3, 2, 9, 0, 0, 0, schoolTZ)
	evening := time.Date(2026, 3, 2, 17, 30, 0, 0, schoolTZ)
	nextDay := time.Date(2026, 3, 3, 10, 0, 0, 0, schoolTZ)
	nextYear := time.Date(2027, 1, 5, 10, 0, 0, 0, schoolTZ)

	first, err := f.numbering.CommitteeNumberFor(ctx, morning)
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-001", first)

	again, err := f.numbering.CommitteeNumberFor(ctx, evening)
	require.NoError(t, err)
	assert.Equal(t, first, again, "same calendar day reuses the allocation")

	second, err := f.numbering.CommitteeNumberFor(ctx, nextDay)
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-002", second)
	assert.GreaterOrEqual(t, second, first)

	rollover, err := f.numbering.CommitteeNumberFor(ctx, nextYear)
	require.NoError(t, err)
	assert.Equal(t, "COM-2027-001", rollover)
}

func TestCommitteeNumberUsesSchoolTimezone(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// 03:00 UTC on the 3rd is still the evening of the 2nd at the school.
	afternoon, err := f.numbering.CommitteeNumberFor(ctx, time.Date(2026, 3, 2, 15, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	lateNight, err := f.numbering.CommitteeNumberFor(ctx, time.Date(2026, 3, 3, 3, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.Equal(t, afternoon, lateNight)
	assert.Contains(t, f.st.committees, "2026-03-02")
}

func TestCommitteeNumberZeroDateUsesNow(t *testing.T) {
	f := newFixture(t, false)

	got, err := f.numbering.CommitteeNumberFor(context.Background(), time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-001", got)
	assert.Equal(t, "COM-2026-001", f.st.committees["2026-03-02"])
}

func TestClaimCommitteeNumber(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	day := time.Date(2026, 5, 20, 11, 0, 0, 0, schoolTZ)

	got, err := f.numbering.ClaimCommitteeNumber(ctx, day, "COM-2026-014")
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-014", got)

	got, err = f.numbering.ClaimCommitteeNumber(ctx, day.Add(3*time.Hour), "COM-2026-099")
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-014", got, "the day's number wins over a later claim")

	fromAllocator, err := f.numbering.CommitteeNumberFor(ctx, day)
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-014", fromAllocator)
}

func TestCommitteeNumberNeverRepeatsAcrossDays(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	dayOne := time.Date(2026, 3, 2, 9, 0, 0, 0, schoolTZ)
	dayTwo := time.Date(2026, 3, 3, 9, 0, 0, 0, schoolTZ)
	dayThree := time.Date(2026, 3, 4, 9, 0, 0, 0, schoolTZ)

	claimed, err := f.numbering.ClaimCommitteeNumber(ctx, dayOne, "COM-2026-002")
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-002", claimed)

	allocated, err := f.numbering.CommitteeNumberFor(ctx, dayTwo)
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-003", allocated, "allocation goes past the claimed number")

	// Claiming a number that already belongs to another day allocates a fresh one.
	reclaimed, err := f.numbering.ClaimCommitteeNumber(ctx, dayThree, "COM-2026-002")
	require.NoError(t, err)
	assert.Equal(t, "COM-2026-004", reclaimed)

	seen := map[string]string{}
	for day, numero := range f.st.committees {
		other, dup := seen[numero]
		assert.False(t, dup, "%s issued to %s and %s", numero, day, other)
		seen[numero] = day
	}
	assert.Len(t, f.st.committees, 3)
}

func seedApproved(f *fixture, kind model.Kind, numero, comite string, approvedAt time.Time) model.Requisition {
	return f.st.seed(model.Requisition{
		Kind:            kind,
		Numero:          numero,
		Status:          model.StatusAprobada,
		NumeroComite:    comite,
		FechaAprobacion: &approvedAt,
		Rector:          true,
	})
}

func TestInitializeFromExisting(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	approvedAt := time.Date(2025, 11, 4, 10, 0, 0, 0, schoolTZ)

	r1 := f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	r2 := seedApproved(f, model.KindRequisicion, "REQ-000002", "", approvedAt)
	r3 := f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	p1 := f.st.seed(model.Requisition{Kind: model.KindPartida})

	report, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Equal(t, int64(3), report.Requisiciones)
	assert.Equal(t, int64(1), report.Partidas)
	assert.Equal(t, 3, report.NumerosAsignados)
	assert.Equal(t, 1, report.ComitesRellenados)

	assert.Equal(t, "REQ-000001", f.st.reqs[r1.ID].Numero)
	assert.Equal(t, "REQ-000002", f.st.reqs[r2.ID].Numero)
	assert.Equal(t, "REQ-000003", f.st.reqs[r3.ID].Numero)
	assert.Equal(t, "PNP-000001", f.st.reqs[p1.ID].Numero)
	assert.Equal(t, "COM-2025-001", f.st.reqs[r2.ID].NumeroComite)

	first := copyCounters(f.st.sequences)

	again, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	assert.True(t, again.Skipped)
	assert.Equal(t, first, f.st.sequences)

	next, err := f.numbering.NextRequisitionNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "REQ-000004", next)
}

func TestInitializeFromExistingTwiceWithEmptyCollection(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	seedApproved(f, model.KindRequisicion, "", "COM-2026-007", time.Date(2026, 2, 10, 9, 0, 0, 0, schoolTZ))

	_, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	first := copyCounters(f.st.sequences)
	firstCommittees := len(f.st.committees)

	// No partidas exist, so the counter stays at zero and the guard does not fire.
	report, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped)
	assert.Zero(t, report.NumerosAsignados)
	assert.Equal(t, first, f.st.sequences)
	assert.Equal(t, firstCommittees, len(f.st.committees))
	assert.Equal(t, "COM-2026-007", f.st.committees["2026-02-10"])
}

func TestInitializeFromExistingNeverLowersCounters(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	// REQ-000004 was issued but its create rolled back, leaving a gap.
	for _, numero := range []string{"REQ-000001", "REQ-000002", "REQ-000003", "REQ-000005"} {
		f.st.seed(model.Requisition{Kind: model.KindRequisicion, Numero: numero})
	}
	f.st.sequences[model.SeqRequisicion] = 5

	report, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	assert.False(t, report.Skipped, "no partidas yet, so the partida counter is still zero")
	assert.Equal(t, int64(5), report.Requisiciones)
	assert.Equal(t, int64(5), f.st.sequences[model.SeqRequisicion])

	next, err := f.numbering.NextRequisitionNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, "REQ-000006", next)
}

func TestInitializeFromExistingSkipsTakenPositions(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()

	a := f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	b := f.st.seed(model.Requisition{Kind: model.KindRequisicion})
	c := f.st.seed(model.Requisition{Kind: model.KindRequisicion, Numero: "REQ-000002"})

	report, err := f.numbering.InitializeFromExisting(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.NumerosAsignados)

	assert.Equal(t, "REQ-000001", f.st.reqs[a.ID].Numero)
	assert.Equal(t, "REQ-000003", f.st.reqs[b.ID].Numero, "position 2 is already held")
	assert.Equal(t, "REQ-000002", f.st.reqs[c.ID].Numero)
	assert.Equal(t, int64(3), f.st.sequences[model.SeqRequisicion])
}

func TestRegenerateCommitteeNumbers(t *testing.T) {
	f := newFixture(t, false)
	ctx := context.Background()
	dayOne := time.Date(2026, 4, 6, 9, 0, 0, 0, schoolTZ)
	dayTwo := time.Date(2026, 4, 8, 9, 0, 0, 0, schoolTZ)

	a := seedApproved(f, model.KindRequisicion, "REQ-000001", "COM-2026-005", dayOne)
	b := seedApproved(f, model.KindPartida, "PNP-000001", "COM-2026-009", dayOne.Add(2*time.Hour))
	c := seedApproved(f, model.KindRequisicion, "REQ-000002", "COM-2026-002", dayTwo)
	rejected := f.st.seed(model.Requisition{Kind: model.KindRequisicion, Status: model.StatusRechazada, NumeroComite: "COM-2026-003"})
	f.st.committees["2026-01-15"] = "COM-2026-001"

	changes, err := f.numbering.RegenerateCommitteeNumbers(ctx)
	require.NoError(t, err)

	assert.Equal(t, "COM-2026-001", f.st.reqs[a.ID].NumeroComite)
	assert.Equal(t, "COM-2026-001", f.st.reqs[b.ID].NumeroComite)
	assert.Equal(t, "COM-2026-002", f.st.reqs[c.ID].NumeroComite)
	assert.Equal(t, "COM-2026-003", f.st.reqs[rejected.ID].NumeroComite)
	assert.Len(t, f.st.committees, 2, "stale allocations are cleared")

	require.Len(t, changes, 2)
	assert.Equal(t, "COM-2026-005", changes[0].Anterior)
	assert.Equal(t, "COM-2026-001", changes[0].Nuevo)
	assert.Equal(t, "2026-04-06", changes[0].Fecha)
	assert.Equal(t, b.ID.String(), changes[1].RequisitionID)
}

func copyCounters(in map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
