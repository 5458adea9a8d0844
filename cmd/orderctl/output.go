package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/joseph-ayodele/medorders/internal/common"
	"github.com/joseph-ayodele/medorders/internal/entity"
)

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow, color.Bold)
	failColor = color.New(color.FgRed)
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, name string, res *entity.CreateOrderResult) {
	o := res.Order
	_, _ = okColor.Fprintf(w, "%s: order %d", name, o.ID)
	if o.Patient != nil {
		fmt.Fprintf(w, " patient=%s", o.Patient.MedicalRecordNumber)
	}
	fmt.Fprintf(w, " devices=%d\n", len(o.Devices))
	for _, d := range res.DuplicateWarnings {
		_, _ = warnColor.Fprintf(w, "  possible duplicate of order %d (score %d): %v\n", d.OrderID, d.SimilarityScore, d.Reasons)
	}
}

func printFailure(w io.Writer, name string, err error) {
	kind := common.Kind(err)
	if kind == "" {
		kind = "ERROR"
	}
	_, _ = failColor.Fprintf(w, "%s: %s: %v\n", name, kind, err)
}
