package repository

import (
	"context"
	"database/sql"
	"log/slog"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

type DeviceRepository interface {
	// InsertIfAbsent requires d.SKU and returns the id of the row holding it.
	InsertIfAbsent(ctx context.Context, q Querier, d entity.DeviceDraft) (id int, created bool, err error)
	// Insert always creates a new row.
	Insert(ctx context.Context, q Querier, d entity.DeviceDraft) (int, error)
	FindBySKU(ctx context.Context, q Querier, sku string) (*entity.Device, error)
	ListByIDs(ctx context.Context, q Querier, ids []int) ([]entity.Device, error)
	MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error)
}

var deviceColumns = []string{"id", "sku", "name", "details", "authorization_required", "cost_per_unit", "device_type"}

type deviceRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewDeviceRepository(db *DB, logger *slog.Logger) DeviceRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &deviceRepository{db: db, logger: logger}
}

func (r *deviceRepository) insert(d entity.DeviceDraft, sku any) *entsql.InsertBuilder {
	return r.db.builder().Insert(TableDevices).
		Columns(deviceColumns[1:]...).
		Values(sku, d.Name, value(d.Details), d.AuthorizationRequired, value(d.CostPerUnit), value(d.DeviceType))
}

func (r *deviceRepository) InsertIfAbsent(ctx context.Context, q Querier, d entity.DeviceDraft) (int, bool, error) {
	if !d.HasSKU() {
		return 0, false, common.NewAppError("INVALID_INPUT", "device sku is required for keyed insert", common.ErrInvalidInput)
	}
	query, args := r.insert(d, *d.SKU).
		OnConflict(entsql.ConflictColumns("sku"), entsql.DoNothing()).
		Returning("id").
		Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("device insert failed", "error", err)
		return 0, false, err
	}
	if len(ids) == 1 {
		r.logger.Info("device created", "device_id", ids[0])
		return ids[0], true, nil
	}
	existing, err := r.FindBySKU(ctx, q, *d.SKU)
	if err != nil {
		return 0, false, err
	}
	return existing.ID, false, nil
}

func (r *deviceRepository) Insert(ctx context.Context, q Querier, d entity.DeviceDraft) (int, error) {
	query, args := r.insert(d, naturalKey(d.SKU)).Returning("id").Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("device insert failed", "error", err)
		return 0, err
	}
	if len(ids) != 1 {
		return 0, common.NewAppError("DB_ERROR", "device insert returned no id", common.ErrDatabase)
	}
	return ids[0], nil
}

func (r *deviceRepository) FindBySKU(ctx context.Context, q Querier, sku string) (*entity.Device, error) {
	out, err := r.list(ctx, q, entsql.EQ("sku", sku))
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return &out[0], nil
}

func (r *deviceRepository) ListByIDs(ctx context.Context, q Querier, ids []int) ([]entity.Device, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.list(ctx, q, entsql.InInts("id", ids...))
}

func (r *deviceRepository) MissingIDs(ctx context.Context, q Querier, ids []int) ([]int, error) {
	return missingIDs(ctx, q, r.db.builder(), TableDevices, ids)
}

func (r *deviceRepository) list(ctx context.Context, q Querier, p *entsql.Predicate) ([]entity.Device, error) {
	b := r.db.builder()
	query, args := b.Select(deviceColumns...).From(b.Table(TableDevices)).Where(p).OrderBy("id").Query()
	var out []entity.Device
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var (
			d                   entity.Device
			sku, details, dtype sql.NullString
			cost                sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &sku, &d.Name, &details, &d.AuthorizationRequired, &cost, &dtype); err != nil {
			return err
		}
		d.SKU = strPtr(sku)
		d.Details = strPtr(details)
		d.CostPerUnit = intPtr(cost)
		d.DeviceType = strPtr(dtype)
		out = append(out, d)
		return nil
	})
	return out, err
}
