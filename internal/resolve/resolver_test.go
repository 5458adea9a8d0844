package resolve

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/repository"
)

type fixture struct {
	db       *repository.DB
	resolver *Resolver
}

func setup(t *testing.T, opts Options) fixture {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", nil)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	require.NoError(t, db.Migrate(ctx))
	return fixture{
		db: db,
		resolver: New(
			repository.NewPatientRepository(db, nil),
			repository.NewPrescriberRepository(db, nil),
			repository.NewDeviceRepository(db, nil),
			opts, nil,
		),
	}
}

func (f fixture) count(t *testing.T, table string) int {
	t.Helper()
	n, err := f.db.CountRows(context.Background(), table)
	require.NoError(t, err)
	return n
}

func ptr[T any](v T) *T { return &v }

func TestResolvePatientIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	first, err := f.resolver.ResolvePatient(ctx, f.db.Driver, entity.PatientDraft{MedicalRecordNumber: "MRN1", FirstName: "Jane", LastName: "Doe"})
	require.NoError(t, err)
	second, err := f.resolver.ResolvePatient(ctx, f.db.Driver, entity.PatientDraft{MedicalRecordNumber: "MRN1", FirstName: "Jane", LastName: "Roe"})
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := repository.NewPatientRepository(f.db, nil).Get(ctx, f.db.Driver, first)
	require.NoError(t, err)
	assert.Equal(t, "Doe", stored.LastName)
	assert.Equal(t, 1, f.count(t, repository.TablePatients))
}

func TestResolveConcurrentSameKey(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	const workers = 8
	ids := make([]int, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = f.resolver.ResolvePatient(ctx, f.db.Driver, entity.PatientDraft{
				MedicalRecordNumber: "RACE", FirstName: "P", LastName: fmt.Sprintf("v%d", i),
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}
	assert.Equal(t, 1, f.count(t, repository.TablePatients))
}

func TestResolvePrescriber(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	a, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, entity.PrescriberDraft{FirstName: "A", LastName: "B", NPI: ptr("1111111111")})
	require.NoError(t, err)
	b, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, entity.PrescriberDraft{FirstName: "Other", LastName: "Name", NPI: ptr("1111111111")})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	c, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, entity.PrescriberDraft{FirstName: "A", LastName: "B"})
	require.NoError(t, err)
	d, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, entity.PrescriberDraft{FirstName: "A", LastName: "B", NPI: ptr("")})
	require.NoError(t, err)
	assert.NotEqual(t, c, d)
	assert.NotEqual(t, a, c)
	assert.Equal(t, 3, f.count(t, repository.TablePrescribers))
}

func TestSentinelNPI(t *testing.T) {
	ctx := context.Background()
	draft := entity.PrescriberDraft{FirstName: "A", LastName: "B", NPI: ptr(entity.SentinelNPI)}

	t.Run("literal key", func(t *testing.T) {
		f := setup(t, Options{})
		a, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, draft)
		require.NoError(t, err)
		b, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, draft)
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("absent key", func(t *testing.T) {
		f := setup(t, Options{TreatSentinelNPIAsAbsent: true})
		a, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, draft)
		require.NoError(t, err)
		b, err := f.resolver.ResolvePrescriber(ctx, f.db.Driver, draft)
		require.NoError(t, err)
		assert.NotEqual(t, a, b)

		stored, err := repository.NewPrescriberRepository(f.db, nil).Get(ctx, f.db.Driver, a)
		require.NoError(t, err)
		assert.Nil(t, stored.NPI)
		assert.Equal(t, entity.SentinelNPI, *draft.NPI, "caller draft is not modified")
	})
}

func TestResolveDevice(t *testing.T) {
	ctx := context.Background()
	f := setup(t, Options{})

	a, err := f.resolver.ResolveDevice(ctx, f.db.Driver, entity.DeviceDraft{Name: "Walker", SKU: ptr("WK-1")})
	require.NoError(t, err)
	b, err := f.resolver.ResolveDevice(ctx, f.db.Driver, entity.DeviceDraft{Name: "Walker XL", SKU: ptr("WK-1")})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = f.resolver.ResolveDevice(ctx, f.db.Driver, entity.DeviceDraft{Name: "Unlabelled"})
	require.NoError(t, err)
	_, err = f.resolver.ResolveDevice(ctx, f.db.Driver, entity.DeviceDraft{Name: "Unlabelled"})
	require.NoError(t, err)
	assert.Equal(t, 3, f.count(t, repository.TableDevices))
}
