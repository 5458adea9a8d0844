// Package resolve maps entity drafts to stored ids by natural key.
//
// A stored row is authoritative: resolving a key that already exists returns
// the existing id and never updates the row. Creation is an atomic
// insert-if-absent at the storage layer, so concurrent callers racing on the
// same new key all observe the winner's id.
package resolve

import (
	"context"
	"errors"
	"log/slog"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/repository"
)

type Options struct {
	// TreatSentinelNPIAsAbsent resolves the sentinel NPI as "no natural key".
	TreatSentinelNPIAsAbsent bool
}

type Resolver struct {
	patients    repository.PatientRepository
	prescribers repository.PrescriberRepository
	devices     repository.DeviceRepository
	opts        Options
	logger      *slog.Logger
}

func New(patients repository.PatientRepository, prescribers repository.PrescriberRepository,
	devices repository.DeviceRepository, opts Options, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		patients:    patients,
		prescribers: prescribers,
		devices:     devices,
		opts:        opts,
		logger:      logger,
	}
}

// ResolvePatient returns the id of the patient with d's MRN, creating it from d if absent.
func (r *Resolver) ResolvePatient(ctx context.Context, q repository.Querier, d entity.PatientDraft) (int, error) {
	existing, err := r.patients.FindByMRN(ctx, q, d.MedicalRecordNumber)
	switch {
	case err == nil:
		r.logger.Debug("patient resolved", "patient_id", existing.ID)
		return existing.ID, nil
	case !errors.Is(err, common.ErrNotFound):
		return 0, err
	}
	id, _, err := r.patients.InsertIfAbsent(ctx, q, d)
	return id, err
}

// ResolvePrescriber looks up by NPI when present; without one it always inserts.
func (r *Resolver) ResolvePrescriber(ctx context.Context, q repository.Querier, d entity.PrescriberDraft) (int, error) {
	if r.opts.TreatSentinelNPIAsAbsent && d.NPI != nil && *d.NPI == entity.SentinelNPI {
		d.NPI = nil
	}
	if !d.HasNPI() {
		return r.prescribers.Insert(ctx, q, d)
	}
	existing, err := r.prescribers.FindByNPI(ctx, q, *d.NPI)
	switch {
	case err == nil:
		r.logger.Debug("prescriber resolved", "prescriber_id", existing.ID)
		return existing.ID, nil
	case !errors.Is(err, common.ErrNotFound):
		return 0, err
	}
	id, _, err := r.prescribers.InsertIfAbsent(ctx, q, d)
	return id, err
}

// ResolveDevice looks up by SKU when present; without one it always inserts.
func (r *Resolver) ResolveDevice(ctx context.Context, q repository.Querier, d entity.DeviceDraft) (int, error) {
	if !d.HasSKU() {
		return r.devices.Insert(ctx, q, d)
	}
	existing, err := r.devices.FindBySKU(ctx, q, *d.SKU)
	switch {
	case err == nil:
		return existing.ID, nil
	case !errors.Is(err, common.ErrNotFound):
		return 0, err
	}
	id, _, err := r.devices.InsertIfAbsent(ctx, q, d)
	return id, err
}
