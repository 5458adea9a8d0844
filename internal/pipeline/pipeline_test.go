package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
	"github.com/joseph-ayodele/medorders/internal/ocr"
)

type stubAcquirer struct {
	res   ocr.Result
	err   error
	calls int
}

func (s *stubAcquirer) Acquire(_ context.Context, _ []byte, _ string) (ocr.Result, error) {
	s.calls++
	return s.res, s.err
}

type stubFields struct {
	parsed entity.ParsedOrder
	err    error
	got    ocr.Result
}

func (s *stubFields) ExtractFields(_ context.Context, text ocr.Result, _ string) (entity.ParsedOrder, error) {
	s.got = text
	return s.parsed, s.err
}

type stubWriter struct {
	persisted []entity.ParsedOrder
	created   []entity.OrderRequest
}

func (s *stubWriter) CreateOrder(_ context.Context, req entity.OrderRequest) (*entity.CreateOrderResult, error) {
	s.created = append(s.created, req)
	return &entity.CreateOrderResult{Order: &entity.Order{ID: 9}}, nil
}

func (s *stubWriter) Persist(_ context.Context, parsed entity.ParsedOrder) (*entity.CreateOrderResult, error) {
	s.persisted = append(s.persisted, parsed)
	return &entity.CreateOrderResult{Order: &entity.Order{ID: 7, PatientID: 1}}, nil
}

func parsedOrder() entity.ParsedOrder {
	return entity.ParsedOrder{
		Patient:    entity.PatientDraft{MedicalRecordNumber: "M1", FirstName: "A", LastName: "B"},
		Prescriber: entity.PrescriberDraft{FirstName: "C", LastName: "D"},
		Tier:       entity.TierNative,
	}
}

func TestExtractRunsStagesInOrder(t *testing.T) {
	acq := &stubAcquirer{res: ocr.Result{Text: "order text", Tier: entity.TierNative, Pages: 1, Chars: 10}}
	fields := &stubFields{parsed: parsedOrder()}
	w := &stubWriter{}
	p := New(common.PipelineConfig{}, acq, fields, w, nil)

	got, err := p.Extract(context.Background(), []byte("%PDF-1.4"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "M1", got.Patient.MedicalRecordNumber)
	assert.Equal(t, "order text", fields.got.Text)
	assert.Empty(t, w.persisted, "extract never persists")
}

func TestExtractRejectsOversizedDocument(t *testing.T) {
	acq := &stubAcquirer{}
	p := New(common.PipelineConfig{MaxDocumentBytes: 4}, acq, &stubFields{}, &stubWriter{}, nil)

	_, err := p.Extract(context.Background(), []byte("12345"), "big.pdf")
	assert.ErrorIs(t, err, common.ErrInvalidRequestShape)
	assert.Zero(t, acq.calls)
}

func TestExtractAndPersist(t *testing.T) {
	w := &stubWriter{}
	p := New(common.DefaultPipelineConfig(),
		&stubAcquirer{res: ocr.Result{Text: "t", Tier: entity.TierOCR}},
		&stubFields{parsed: parsedOrder()}, w, nil)

	out, err := p.ExtractAndPersist(context.Background(), []byte("x"), "a.pdf")
	require.NoError(t, err)
	assert.Equal(t, 7, out.Result.Order.ID)
	assert.Equal(t, "M1", out.Parsed.Patient.MedicalRecordNumber)
	require.Len(t, w.persisted, 1)
}

func TestExtractAndPersistStopsOnExtractionFailure(t *testing.T) {
	cases := map[string]struct {
		acq    *stubAcquirer
		fields *stubFields
		kind   error
	}{
		"unreadable": {
			acq:    &stubAcquirer{err: common.UnreadableDocument(0)},
			fields: &stubFields{},
			kind:   common.ErrUnreadableDocument,
		},
		"incomplete": {
			acq:    &stubAcquirer{res: ocr.Result{Text: "t"}},
			fields: &stubFields{err: common.IncompleteExtraction("patient.last_name")},
			kind:   common.ErrIncompleteExtraction,
		},
		"malformed": {
			acq:    &stubAcquirer{res: ocr.Result{Text: "t"}},
			fields: &stubFields{err: common.MalformedModelOutput("bad", "not json", nil)},
			kind:   common.ErrMalformedModelOutput,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			w := &stubWriter{}
			_, err := New(common.PipelineConfig{}, tc.acq, tc.fields, w, nil).
				ExtractAndPersist(context.Background(), []byte("x"), "a.pdf")
			assert.ErrorIs(t, err, tc.kind)
			assert.Empty(t, w.persisted)
		})
	}
}

func TestCreateOrderDelegates(t *testing.T) {
	w := &stubWriter{}
	p := New(common.PipelineConfig{}, &stubAcquirer{}, &stubFields{}, w, nil)
	res, err := p.CreateOrder(context.Background(), entity.OrderRequest{PatientID: new(int)})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Order.ID)
	assert.Len(t, w.created, 1)
	assert.Equal(t, common.DefaultInferenceModel, p.Config().InferenceModel)
}
