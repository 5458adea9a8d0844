package orders

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"time"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/duplicates"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/repository"
	"github.com/joseph-ayodele/medorders/internal/resolve"
)

// Service is the order writer: it resolves entities, runs duplicate
// detection and commits the order with its device lines in one transaction.
type Service struct {
	db          *repository.DB
	patients    repository.PatientRepository
	prescribers repository.PrescriberRepository
	devices     repository.DeviceRepository
	orders      repository.OrderRepository
	resolver    *resolve.Resolver
	detector    *duplicates.Detector
	now         func() time.Time
	logger      *slog.Logger
}

func NewService(db *repository.DB, cfg common.PipelineConfig, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.WithDefaults()
	s := &Service{
		db:          db,
		patients:    repository.NewPatientRepository(db, logger),
		prescribers: repository.NewPrescriberRepository(db, logger),
		devices:     repository.NewDeviceRepository(db, logger),
		orders:      repository.NewOrderRepository(db, logger),
		now:         time.Now,
		logger:      logger,
	}
	s.resolver = resolve.New(s.patients, s.prescribers, s.devices,
		resolve.Options{TreatSentinelNPIAsAbsent: cfg.TreatSentinelNPIAsAbsent}, logger)
	s.detector = duplicates.NewDetector(s.orders, cfg.LookbackWindow(), cfg.DuplicateScoreThreshold, logger)
	return s
}

// CreateOrder validates req, then persists it atomically. Duplicate warnings
// are advisory and never block creation.
func (s *Service) CreateOrder(ctx context.Context, req entity.OrderRequest) (*entity.CreateOrderResult, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}

	var result *entity.CreateOrderResult
	err := s.db.InTx(ctx, func(tx repository.Querier) error {
		patientID, err := s.patientID(ctx, tx, req)
		if err != nil {
			return err
		}
		prescriberID, err := s.prescriberID(ctx, tx, req)
		if err != nil {
			return err
		}
		lines, err := s.deviceLines(ctx, tx, req)
		if err != nil {
			return err
		}

		warnings, err := s.detector.Detect(ctx, tx, patientID, prescriberID, req.ItemName)
		if err != nil {
			return err
		}

		orderID, err := s.orders.Insert(ctx, tx, repository.NewOrder{
			OrderFields:  req.OrderFields,
			PatientID:    patientID,
			PrescriberID: prescriberID,
			CreatedAt:    s.now(),
		})
		if err != nil {
			return err
		}
		if err := s.orders.InsertLines(ctx, tx, orderID, lines); err != nil {
			return err
		}

		order, err := s.load(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result = &entity.CreateOrderResult{
			Order:             order,
			DuplicateWarnings: warnings,
			HasDuplicates:     len(warnings) > 0,
		}
		return nil
	})
	if err != nil {
		return nil, s.classify(err)
	}

	s.logger.Info("order created",
		"order_id", result.Order.ID,
		"patient_id", result.Order.PatientID,
		"prescriber_id", result.Order.PrescriberID,
		"devices", len(result.Order.Devices),
		"duplicates", len(result.DuplicateWarnings),
	)
	return result, nil
}

// Persist writes an extracted order, resolving every entity by natural key.
func (s *Service) Persist(ctx context.Context, parsed entity.ParsedOrder) (*entity.CreateOrderResult, error) {
	return s.CreateOrder(ctx, parsed.Request())
}

// Get loads an order with its patient, prescriber and device lines.
func (s *Service) Get(ctx context.Context, id int) (*entity.Order, error) {
	order, err := s.load(ctx, s.db.Driver, id)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.UnknownEntityReference("Order", []int{id})
	}
	return order, err
}

// ListSince loads every order created at or after since, with relationships.
func (s *Service) ListSince(ctx context.Context, since time.Time) ([]*entity.Order, error) {
	rows, err := s.orders.ListSince(ctx, s.db.Driver, since)
	if err != nil {
		return nil, err
	}
	out := make([]*entity.Order, 0, len(rows))
	for _, row := range rows {
		o, err := s.load(ctx, s.db.Driver, row.ID)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *Service) patientID(ctx context.Context, q repository.Querier, req entity.OrderRequest) (int, error) {
	if req.PatientID != nil {
		missing, err := s.patients.MissingIDs(ctx, q, []int{*req.PatientID})
		if err != nil {
			return 0, err
		}
		if len(missing) > 0 {
			return 0, common.UnknownEntityReference("Patient", missing)
		}
		return *req.PatientID, nil
	}
	return s.resolver.ResolvePatient(ctx, q, *req.Patient)
}

func (s *Service) prescriberID(ctx context.Context, q repository.Querier, req entity.OrderRequest) (int, error) {
	if req.PrescriberID != nil {
		missing, err := s.prescribers.MissingIDs(ctx, q, []int{*req.PrescriberID})
		if err != nil {
			return 0, err
		}
		if len(missing) > 0 {
			return 0, common.UnknownEntityReference("Prescriber", missing)
		}
		return *req.PrescriberID, nil
	}
	return s.resolver.ResolvePrescriber(ctx, q, *req.Prescriber)
}

// deviceLines returns one line per distinct device. Explicit ids are checked
// for existence first and every missing id is reported.
func (s *Service) deviceLines(ctx context.Context, q repository.Querier, req entity.OrderRequest) ([]entity.DeviceLine, error) {
	if len(req.DeviceIDs) > 0 {
		missing, err := s.devices.MissingIDs(ctx, q, req.DeviceIDs)
		if err != nil {
			return nil, err
		}
		if len(missing) > 0 {
			return nil, common.UnknownEntityReference("Devices", missing)
		}
		var lines []entity.DeviceLine
		for _, id := range req.DeviceIDs {
			if !slices.ContainsFunc(lines, func(l entity.DeviceLine) bool { return l.DeviceID == id }) {
				lines = append(lines, entity.DeviceLine{DeviceID: id, Quantity: 1})
			}
		}
		return lines, nil
	}

	var lines []entity.DeviceLine
	for _, d := range req.Devices {
		id, err := s.resolver.ResolveDevice(ctx, q, d)
		if err != nil {
			return nil, err
		}
		qty := d.Quantity
		if qty <= 0 {
			qty = 1
		}
		lines = addLine(lines, id, qty)
	}
	return lines, nil
}

// addLine merges repeated devices into one line by summing quantity.
func addLine(lines []entity.DeviceLine, deviceID, qty int) []entity.DeviceLine {
	if i := slices.IndexFunc(lines, func(l entity.DeviceLine) bool { return l.DeviceID == deviceID }); i >= 0 {
		lines[i].Quantity += qty
		return lines
	}
	return append(lines, entity.DeviceLine{DeviceID: deviceID, Quantity: qty})
}

func (s *Service) load(ctx context.Context, q repository.Querier, id int) (*entity.Order, error) {
	order, err := s.orders.Get(ctx, q, id)
	if err != nil {
		return nil, err
	}
	if order.Patient, err = s.patients.Get(ctx, q, order.PatientID); err != nil {
		return nil, err
	}
	if order.Prescriber, err = s.prescribers.Get(ctx, q, order.PrescriberID); err != nil {
		return nil, err
	}
	lines, err := s.orders.Lines(ctx, q, id)
	if err != nil {
		return nil, err
	}
	ids := make([]int, len(lines))
	for i, l := range lines {
		ids[i] = l.DeviceID
	}
	devices, err := s.devices.ListByIDs(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	order.Devices = make([]entity.OrderDevice, 0, len(lines))
	for _, l := range lines {
		j := slices.IndexFunc(devices, func(d entity.Device) bool { return d.ID == l.DeviceID })
		if j < 0 {
			continue
		}
		order.Devices = append(order.Devices, entity.OrderDevice{Device: devices[j], Quantity: l.Quantity})
	}
	return order, nil
}

// classify keeps domain errors and maps storage integrity failures onto
// ConstraintViolation. The transaction has already been rolled back.
func (s *Service) classify(err error) error {
	var de *common.DomainError
	if errors.As(err, &de) {
		return err
	}
	if kind := repository.ClassifyConstraint(err); kind != repository.NotConstraint {
		s.logger.Error("order write rejected by storage", "constraint", kind.String(), "error", err)
		return common.ConstraintViolation("The order was not saved.", err)
	}
	s.logger.Error("order write failed", "error", err)
	return common.NewAppError("DB_ERROR", "failed to create order", errors.Join(common.ErrDatabase, err))
}
