package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

// NewOrder is the row written by OrderRepository.Insert.
type NewOrder struct {
	entity.OrderFields
	PatientID    int
	PrescriberID int
	CreatedAt    time.Time
}

type OrderRepository interface {
	Insert(ctx context.Context, q Querier, o NewOrder) (int, error)
	InsertLines(ctx context.Context, q Querier, orderID int, lines []entity.DeviceLine) error
	// ListForPair returns orders of one (patient, prescriber) pair, newest
	// first. A zero since means no lower bound on created_at.
	ListForPair(ctx context.Context, q Querier, patientID, prescriberID int, since time.Time) ([]entity.Order, error)
	// ListSince returns orders created at or after since, oldest first.
	ListSince(ctx context.Context, q Querier, since time.Time) ([]entity.Order, error)
	Get(ctx context.Context, q Querier, id int) (*entity.Order, error)
	Lines(ctx context.Context, q Querier, orderID int) ([]entity.DeviceLine, error)
}

var orderColumns = []string{
	"id", "item_name", "order_cost_raw", "order_cost_to_insurer", "item_quantity",
	"reason_prescribed", "created_at", "patient_id", "prescriber_id",
}

type orderRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewOrderRepository(db *DB, logger *slog.Logger) OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{db: db, logger: logger}
}

func (r *orderRepository) Insert(ctx context.Context, q Querier, o NewOrder) (int, error) {
	query, args := r.db.builder().Insert(TableOrders).
		Columns(orderColumns[1:]...).
		Values(
			value(o.ItemName), value(o.OrderCostRaw), value(o.OrderCostToInsurer), value(o.ItemQuantity),
			value(o.ReasonPrescribed), o.CreatedAt.UTC(), o.PatientID, o.PrescriberID,
		).
		Returning("id").
		Query()
	ids, err := queryIDs(ctx, q, query, args)
	if err != nil {
		r.logger.Error("order insert failed", "patient_id", o.PatientID, "prescriber_id", o.PrescriberID, "error", err)
		return 0, err
	}
	if len(ids) != 1 {
		return 0, common.NewAppError("DB_ERROR", "order insert returned no id", common.ErrDatabase)
	}
	return ids[0], nil
}

func (r *orderRepository) InsertLines(ctx context.Context, q Querier, orderID int, lines []entity.DeviceLine) error {
	if len(lines) == 0 {
		return nil
	}
	ins := r.db.builder().Insert(TableOrderDevices).Columns("order_id", "device_id", "quantity")
	for _, l := range lines {
		ins.Values(orderID, l.DeviceID, l.Quantity)
	}
	query, args := ins.Query()
	if _, err := exec(ctx, q, query, args); err != nil {
		r.logger.Error("order lines insert failed", "order_id", orderID, "lines", len(lines), "error", err)
		return err
	}
	return nil
}

func (r *orderRepository) ListForPair(ctx context.Context, q Querier, patientID, prescriberID int, since time.Time) ([]entity.Order, error) {
	preds := []*entsql.Predicate{
		entsql.EQ("patient_id", patientID),
		entsql.EQ("prescriber_id", prescriberID),
	}
	if !since.IsZero() {
		preds = append(preds, entsql.GTE("created_at", since.UTC()))
	}
	return r.list(ctx, q, entsql.And(preds...), entsql.Desc("id"))
}

func (r *orderRepository) ListSince(ctx context.Context, q Querier, since time.Time) ([]entity.Order, error) {
	return r.list(ctx, q, entsql.GTE("created_at", since.UTC()), "id")
}

func (r *orderRepository) Get(ctx context.Context, q Querier, id int) (*entity.Order, error) {
	out, err := r.list(ctx, q, entsql.EQ("id", id), "id")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, common.ErrNotFound
	}
	return &out[0], nil
}

func (r *orderRepository) Lines(ctx context.Context, q Querier, orderID int) ([]entity.DeviceLine, error) {
	b := r.db.builder()
	query, args := b.Select("device_id", "quantity").
		From(b.Table(TableOrderDevices)).
		Where(entsql.EQ("order_id", orderID)).
		OrderBy("device_id").
		Query()
	var out []entity.DeviceLine
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var l entity.DeviceLine
		if err := rows.Scan(&l.DeviceID, &l.Quantity); err != nil {
			return err
		}
		out = append(out, l)
		return nil
	})
	return out, err
}

func (r *orderRepository) list(ctx context.Context, q Querier, p *entsql.Predicate, orderBy string) ([]entity.Order, error) {
	b := r.db.builder()
	query, args := b.Select(orderColumns...).From(b.Table(TableOrders)).Where(p).OrderBy(orderBy).Query()
	var out []entity.Order
	err := queryRows(ctx, q, query, args, func(rows *entsql.Rows) error {
		var (
			o                    entity.Order
			itemName, reason     sql.NullString
			costRaw, costInsurer sql.NullInt64
			itemQty              sql.NullInt64
		)
		if err := rows.Scan(&o.ID, &itemName, &costRaw, &costInsurer, &itemQty, &reason, &o.CreatedAt, &o.PatientID, &o.PrescriberID); err != nil {
			return err
		}
		o.ItemName = strPtr(itemName)
		o.OrderCostRaw = intPtr(costRaw)
		o.OrderCostToInsurer = intPtr(costInsurer)
		o.ItemQuantity = intPtr(itemQty)
		o.ReasonPrescribed = strPtr(reason)
		o.CreatedAt = o.CreatedAt.UTC()
		out = append(out, o)
		return nil
	})
	return out, err
}
