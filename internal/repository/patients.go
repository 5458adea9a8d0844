package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

type PatientRepository interface {
	// InsertIfAbsent inserts d unless its MRN exists and returns the id of
	// the row holding that MRN. created is false when the row already existed.
	InsertIfAbsent(ctx context.Context, q Querier, d entity.PatientDraft) (id int, created bool, err error)
	FindByMRN(ctx context.Context, q Querier, mrn string) (*entity.Patient, error)
	Get(ctx context.Context, q Querier, id int) (*entity.Patient, error)
	MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error)
}

var patientColumns = []string{"id", "medical_record_number", "first_name", "last_name", "age"}

type patientRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewPatientRepository(db *DB, logger *slog.Logger) PatientRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &patientRepository{db: db, logger: logger}
}

func (r *patientRepository) InsertIfAbsent(ctx context.Context, q Querier, d entity.PatientDraft) (int, bool, error) {
	query, args := r.db.builder().Insert(TablePatients).
		Columns("medical_record_number", "first_name", "last_name", "age").
		Values(d.MedicalRecordNumber, d.FirstName, d.LastName, value(d.Age)).
		OnConflict(entsql.ConflictColumns("medical_record_number"), entsql.DoNothing()).
		Returning("id").
		Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("patient insert failed", "error", err)
		return 0, false, err
	}
	if len(ids) == 1 {
		r.logger.Info("patient created", "patient_id", ids[0])
		return ids[0], true, nil
	}
	existing, err := r.FindByMRN(ctx, q, d.MedicalRecordNumber)
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

func (r *patientRepository) FindByMRN(ctx context.Context, q Querier, mrn string) (*entity.Patient, error) {
	return r.findOne(ctx, q, entsql.EQ("medical_record_number", mrn))
}

func (r *patientRepository) Get(ctx context.Context, q Querier, id int) (*entity.Patient, error) {
	return r.findOne(ctx, q, entsql.EQ("id", id))
}

func (r *patientRepository) MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error) {
	return missingIDs(ctx, q, r.db.builder(), TablePatients, ids)
}

func (r *patientRepository) findOne(ctx context.Context, q Querier, p *entsql.Predicate) (*entity.Patient, error) {
	b := r.db.builder()
	query, args := b.Select(patientColumns...).From(b.Table(TablePatients)).Where(p).Limit(1).Query()
	var out *entity.Patient
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var (
			pt  entity.Patient
			age sql.NullInt64
		)
		if err := rows.Scan(&pt.ID, &pt.MedicalRecordNumber, &pt.FirstName, &pt.LastName, &age); err != nil {
			return err
		}
		pt.Age = intPtr(age)
		out = &pt
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
