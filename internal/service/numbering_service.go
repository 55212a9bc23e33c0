package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"requisiciones/internal/metrics"
	"requisiciones/internal/model"
	"requisiciones/internal/repository"

	"github.com/rs/zerolog/log"
)

const dateKeyLayout = "2006-01-02"

// --- DTOs ---

type CountersResponse struct {
	UltimoNumeroRequisicion int64  `json:"ultimo_numero_requisicion"`
	UltimoNumeroPartida     int64  `json:"ultimo_numero_partida"`
	SequenceBackend         string `json:"sequence_backend,omitempty"`
}

type InitializeReport struct {
	Skipped           bool  `json:"skipped"`
	Requisiciones     int64 `json:"requisiciones"`
	Partidas          int64 `json:"partidas"`
	NumerosAsignados  int   `json:"numeros_asignados"`
	ComitesRellenados int   `json:"comites_rellenados"`
}

// CommitteeChange reports a requisition whose committee number moved during regeneration.
type CommitteeChange struct {
	RequisitionID string `json:"requisition_id"`
	Numero        string `json:"numero"`
	Fecha         string `json:"fecha"`
	Anterior      string `json:"anterior"`
	Nuevo         string `json:"nuevo"`
}

// --- Interface ---

type NumberingService interface {
	NextRequisitionNumber(ctx context.Context) (string, error)
	NextPartidaNumber(ctx context.Context) (string, error)
	NextNumber(ctx context.Context, kind model.Kind) (string, error)
	CommitteeNumberFor(ctx context.Context, date time.Time) (string, error)
	ClaimCommitteeNumber(ctx context.Context, date time.Time, numero string) (string, error)
	InitializeFromExisting(ctx context.Context) (InitializeReport, error)
	RegenerateCommitteeNumbers(ctx context.Context) ([]CommitteeChange, error)
	Counters(ctx context.Context) (CountersResponse, error)
}

type numberingService struct {
	sequences  repository.SequenceStore
	committees repository.CommitteeStore
	reqRepo    repository.RequisitionRepository
	txManager  repository.TransactionManager
	loc        *time.Location
	backend    string
	now        func() time.Time
}

// NewNumberingService builds the allocator. Calendar days are taken in loc,
// which should be the school's timezone.
func NewNumberingService(
	sequences repository.SequenceStore,
	committees repository.CommitteeStore,
	reqRepo repository.RequisitionRepository,
	txManager repository.TransactionManager,
	loc *time.Location,
	backend string,
) NumberingService {
	if loc == nil {
		loc = time.UTC
	}
	return &numberingService{
		sequences:  sequences,
		committees: committees,
		reqRepo:    reqRepo,
		txManager:  txManager,
		loc:        loc,
		backend:    backend,
		now:        time.Now,
	}
}

type kindSequence struct {
	key    string
	prefix string
	label  string
}

var kindSequences = map[model.Kind]kindSequence{
	model.KindRequisicion: {key: model.SeqRequisicion, prefix: "REQ", label: "requisicion"},
	model.KindPartida:     {key: model.SeqPartida, prefix: "PNP", label: "partida"},
}

const maxCommitteeAttempts = 5

func formatDisplayNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%06d", prefix, n)
}

func formatCommitteeNumber(year int, seq int64) string {
	return fmt.Sprintf("COM-%d-%03d", year, seq)
}

// parseSeq extracts the numeric suffix of numero after prefix.
func parseSeq(prefix, numero string) (int64, bool) {
	rest, ok := strings.CutPrefix(numero, prefix)
	if !ok || rest == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// --- Implementation ---

func (s *numberingService) NextRequisitionNumber(ctx context.Context) (string, error) {
	return s.NextNumber(ctx, model.KindRequisicion)
}

func (s *numberingService) NextPartidaNumber(ctx context.Context) (string, error) {
	return s.NextNumber(ctx, model.KindPartida)
}

func (s *numberingService) NextNumber(ctx context.Context, kind model.Kind) (string, error) {
	seq, ok := kindSequences[kind]
	if !ok {
		return "", fmt.Errorf("no sequence for kind %q", kind)
	}
	n, err := s.sequences.Increment(ctx, seq.key)
	if err != nil {
		return "", storageErr("increment "+seq.key, err)
	}
	metrics.Allocation(seq.label)
	return formatDisplayNumber(seq.prefix, n), nil
}

func (s *numberingService) dateKey(date time.Time) (string, int) {
	if date.IsZero() {
		date = s.now()
	}
	local := date.In(s.loc)
	return local.Format(dateKeyLayout), local.Year()
}

// CommitteeNumberFor returns the number bound to date's calendar day,
// allocating COM-{year}-{seq} on first use.
func (s *numberingService) CommitteeNumberFor(ctx context.Context, date time.Time) (string, error) {
	key, year := s.dateKey(date)

	for attempt := 0; attempt < maxCommitteeAttempts; attempt++ {
		numero, found, err := s.committees.Find(ctx, key)
		if err != nil {
			return "", storageErr("find committee number", err)
		}
		if found {
			return numero, nil
		}

		seq, err := s.nextCommitteeSeq(ctx, year)
		if err != nil {
			return "", err
		}
		numero = formatCommitteeNumber(year, seq)

		if err := s.committees.Save(ctx, key, numero); err != nil {
			if errors.Is(err, repository.ErrConflict) {
				// Either this day or this number was taken meanwhile; look again.
				continue
			}
			return "", storageErr("save committee number", err)
		}
		metrics.Allocation("comite")
		return numero, nil
	}
	return "", storageErr("allocate committee number", fmt.Errorf("%s: gave up after %d conflicts", key, maxCommitteeAttempts))
}

// nextCommitteeSeq is one past the highest sequence issued in year. Claimed
// numbers can skip ahead of the day count, so both are considered.
func (s *numberingService) nextCommitteeSeq(ctx context.Context, year int) (int64, error) {
	highest, err := s.committees.CountByYear(ctx, year)
	if err != nil {
		return 0, storageErr("count committee numbers", err)
	}
	prefix := fmt.Sprintf("COM-%d-", year)
	numeros, err := s.committees.NumerosWithPrefix(ctx, prefix)
	if err != nil {
		return 0, storageErr("list committee numbers", err)
	}
	for _, n := range numeros {
		if seq, ok := parseSeq(prefix, n); ok && seq > highest {
			highest = seq
		}
	}
	return highest + 1, nil
}

// ClaimCommitteeNumber binds numero to date's day unless the day already has a
// number, in which case the existing one is returned. A numero already bound to
// another day is not reused; the day gets a freshly allocated number instead.
func (s *numberingService) ClaimCommitteeNumber(ctx context.Context, date time.Time, numero string) (string, error) {
	key, _ := s.dateKey(date)

	existing, found, err := s.committees.Find(ctx, key)
	if err != nil {
		return "", storageErr("find committee number", err)
	}
	if found {
		return existing, nil
	}

	owner, taken, err := s.committees.FindByNumero(ctx, numero)
	if err != nil {
		return "", storageErr("find committee number", err)
	}
	if taken {
		log.Warn().
			Str("numero_comite", numero).
			Str("fecha", key).
			Str("asignado_a", owner).
			Msg("committee number belongs to another day, allocating a new one")
		return s.CommitteeNumberFor(ctx, date)
	}

	if err := s.committees.Save(ctx, key, numero); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return s.CommitteeNumberFor(ctx, date)
		}
		return "", storageErr("save committee number", err)
	}
	metrics.Allocation("comite")
	return numero, nil
}

// InitializeFromExisting backfills display numbers, counters and committee
// allocations from stored requisitions. It is a no-op once both counters are
// set, and it only ever raises a counter.
func (s *numberingService) InitializeFromExisting(ctx context.Context) (InitializeReport, error) {
	reqCounter, err := s.sequences.Peek(ctx, model.SeqRequisicion)
	if err != nil {
		return InitializeReport{}, storageErr("peek "+model.SeqRequisicion, err)
	}
	parCounter, err := s.sequences.Peek(ctx, model.SeqPartida)
	if err != nil {
		return InitializeReport{}, storageErr("peek "+model.SeqPartida, err)
	}
	if reqCounter > 0 && parCounter > 0 {
		return InitializeReport{Skipped: true, Requisiciones: reqCounter, Partidas: parCounter}, nil
	}

	var report InitializeReport
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		for _, kind := range []model.Kind{model.KindRequisicion, model.KindPartida} {
			seq := kindSequences[kind]
			rows, err := s.reqRepo.ListByKind(txCtx, kind)
			if err != nil {
				return fmt.Errorf("list %s: %w", seq.label, err)
			}

			current, err := s.sequences.Peek(txCtx, seq.key)
			if err != nil {
				return storageErr("peek "+seq.key, err)
			}
			prefix := seq.prefix + "-"
			taken := make(map[int64]bool, len(rows))
			highest := current
			for i := range rows {
				if n, ok := parseSeq(prefix, rows[i].Numero); ok {
					taken[n] = true
					if n > highest {
						highest = n
					}
				}
			}

			// Rows without a number take their position unless another row
			// already holds it, in which case they go past the highest issued.
			for i := range rows {
				if rows[i].Numero != "" {
					continue
				}
				n := int64(i + 1)
				if taken[n] {
					n = highest + 1
				}
				taken[n] = true
				if n > highest {
					highest = n
				}
				rows[i].Numero = formatDisplayNumber(seq.prefix, n)
				if err := s.reqRepo.Update(txCtx, &rows[i]); err != nil {
					return fmt.Errorf("assign number to %s: %w", rows[i].ID, err)
				}
				report.NumerosAsignados++
			}

			// Counters never move backwards.
			counter := highest
			if size := int64(len(rows)); size > counter {
				counter = size
			}
			if counter != current {
				if err := s.sequences.Set(txCtx, seq.key, counter); err != nil {
					return storageErr("set "+seq.key, err)
				}
			}
			if kind == model.KindRequisicion {
				report.Requisiciones = counter
			} else {
				report.Partidas = counter
			}
		}

		approved, err := s.reqRepo.ListApproved(txCtx)
		if err != nil {
			return fmt.Errorf("list approved: %w", err)
		}
		for i := range approved {
			r := &approved[i]
			if r.FechaAprobacion == nil {
				continue
			}
			if r.NumeroComite != "" {
				if _, err := s.ClaimCommitteeNumber(txCtx, *r.FechaAprobacion, r.NumeroComite); err != nil {
					return err
				}
				continue
			}
			numero, err := s.CommitteeNumberFor(txCtx, *r.FechaAprobacion)
			if err != nil {
				return err
			}
			r.NumeroComite = numero
			if err := s.reqRepo.Update(txCtx, r); err != nil {
				return fmt.Errorf("backfill committee number of %s: %w", r.ID, err)
			}
			report.ComitesRellenados++
		}
		return nil
	})
	if err != nil {
		return InitializeReport{}, err
	}

	log.Info().
		Int64("requisiciones", report.Requisiciones).
		Int64("partidas", report.Partidas).
		Int("numeros_asignados", report.NumerosAsignados).
		Int("comites_rellenados", report.ComitesRellenados).
		Msg("numbering initialized from existing requisitions")
	return report, nil
}

// RegenerateCommitteeNumbers drops every committee allocation and re-derives
// them from approval dates in creation order. Previously issued numbers may change.
func (s *numberingService) RegenerateCommitteeNumbers(ctx context.Context) ([]CommitteeChange, error) {
	changes := make([]CommitteeChange, 0)
	err := s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.committees.Clear(txCtx); err != nil {
			return storageErr("clear committee numbers", err)
		}
		approved, err := s.reqRepo.ListApproved(txCtx)
		if err != nil {
			return fmt.Errorf("list approved: %w", err)
		}
		for i := range approved {
			r := &approved[i]
			if r.FechaAprobacion == nil {
				continue
			}
			numero, err := s.CommitteeNumberFor(txCtx, *r.FechaAprobacion)
			if err != nil {
				return err
			}
			if numero == r.NumeroComite {
				continue
			}
			key, _ := s.dateKey(*r.FechaAprobacion)
			changes = append(changes, CommitteeChange{
				RequisitionID: r.ID.String(),
				Numero:        r.Numero,
				Fecha:         key,
				Anterior:      r.NumeroComite,
				Nuevo:         numero,
			})
			r.NumeroComite = numero
			if err := s.reqRepo.Update(txCtx, r); err != nil {
				return fmt.Errorf("rewrite committee number of %s: %w", r.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, c := range changes {
		log.Warn().
			Str("requisition_id", c.RequisitionID).
			Str("anterior", c.Anterior).
			Str("nuevo", c.Nuevo).
			Msg("committee number rewritten by regeneration")
	}
	return changes, nil
}

func (s *numberingService) Counters(ctx context.Context) (CountersResponse, error) {
	req, err := s.sequences.Peek(ctx, model.SeqRequisicion)
	if err != nil {
		return CountersResponse{}, storageErr("peek "+model.SeqRequisicion, err)
	}
	par, err := s.sequences.Peek(ctx, model.SeqPartida)
	if err != nil {
		return CountersResponse{}, storageErr("peek "+model.SeqPartida, err)
	}
	return CountersResponse{UltimoNumeroRequisicion: req, UltimoNumeroPartida: par, SequenceBackend: s.backend}, nil
}
