package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

type PrescriberRepository interface {
	// InsertIfAbsent requires d.NPI and returns the id of the row holding it.
	InsertIfAbsent(ctx context.Context, q Querier, d entity.PrescriberDraft) (id int, created bool, err error)
	// Insert always creates a new row.
	Insert(ctx context.Context, q Querier, d entity.PrescriberDraft) (int, error)
	FindByNPI(ctx context.Context, q Querier, npi string) (*entity.Prescriber, error)
	Get(ctx context.Context, q Querier, id int) (*entity.Prescriber, error)
	MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error)
}

var prescriberColumns = []string{"id", "first_name", "last_name", "npi", "phone_number", "email", "clinic_name", "clinic_address"}

type prescriberRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPrescriberRepository(db *DB, logger *slog.Logger) PrescriberRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &prescriberRepository{db: db, logger: logger}
}

func (r *prescriberRepository) insert(d entity.PrescriberDraft, npi any) *entsql.InsertBuilder {
	return r.db.builder().Insert(TablePrescribers).
		Columns(prescriberColumns[1:]...).
		Values(d.FirstName, d.LastName, npi, value(d.PhoneNumber), value(d.Email), value(d.ClinicName), value(d.ClinicAddress))
}

func (r *prescriberRepository) InsertIfAbsent(ctx context.Context, q Querier, d entity.PrescriberDraft) (int, bool, error) {
	if !d.HasNPI() {
		return 0, false, common.NewAppError("INVALID_INPUT", "prescriber npi is required for keyed insert", common.ErrInvalidInput)
	}
	query, args := r.insert(d, *d.NPI).
		OnConflict(entsql.ConflictColumns("npi"), entsql.DoNothing()).
		Returning("id").
		Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("prescriber insert failed", "error", err)
		return 0, false, err
	}
	if len(ids) == 1 {
		r.logger.Info("prescriber created", "prescriber_id", ids[0])
		return ids[0], true, nil
	}
	existing, err := r.FindByNPI(ctx, q, *d.NPI)
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

func (r *prescriberRepository) Insert(ctx context.Context, q Querier, d entity.PrescriberDraft) (int, error) {
	query, args := r.insert(d, naturalKey(d.NPI)).Returning("id").Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("prescriber insert failed", "error", err)
		return 0, err
	}
	if len(ids) != 1 {
		return 0, common.NewAppError("DB_ERROR", "prescriber insert returned no id", common.ErrDatabase)
	}
	r.logger.Info("prescriber created", "prescriber_id", ids[0], "keyed", false)
	return ids[0], nil
}

func (r *prescriberRepository) FindByNPI(ctx context.Context, q Querier, npi string) (*entity.Prescriber, error) {
	return r.findOne(ctx, q, entsql.EQ("npi", npi))
}

func (r *prescriberRepository) Get(ctx context.Context, q Querier, id int) (*entity.Prescriber, error) {
	return r.findOne(ctx, q, entsql.EQ("id", id))
}

func (r *prescriberRepository) MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error) {
	return missingIDs(ctx, q, r.db.builder(), TablePrescribers, ids)
}

func (r *prescriberRepository) findOne(ctx context.Context, q Querier, p *entsql.Predicate) (*entity.Prescriber, error) {
	b := r.db.builder()
	query, args := b.Select(prescriberColumns...).From(b.Table(TablePrescribers)).Where(p).Limit(1).Query()
	var out *entity.Prescriber
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var (
			pr                                   entity.Prescriber
			npi, phone, email, clinic, clinicAdr sql.NullString
		)
		if err := rows.Scan(&pr.ID, &pr.FirstName, &pr.LastName, &npi, &phone, &email, &clinic, &clinicAdr); err != nil {
			return err
		}
		pr.NPI = strPtr(npi)
		pr.PhoneNumber = strPtr(phone)
		pr.Email = strPtr(email)
		pr.ClinicName = strPtr(clinic)
		pr.ClinicAddress = strPtr(clinicAdr)
		out = &pr
		return nil
	})
	if err != nil {
		return nil, err
	}
	if out == nil {
		return nil, common.ErrNotFound
	}
	return out, nil
}
