// Package report renders distributions for people and for wire formats.
package report

import (
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/cory-johannsen/odds/internal/distribution"
)

// BarWidth is the width of the histogram bar for the most likely value.
const BarWidth = 40

// Row is one line of a distribution table.
type Row struct {
	Value       int
	Occurrences *big.Int
	Probability *big.Rat
}

// Percent returns the probability as a percentage.
func (r Row) Percent() float64 {
	f, _ := r.Probability.Float64()
	return f * 100
}

// Rows lists every occurring value of d in ascending order.
func Rows(d distribution.Distribution) []Row {
	total := d.Total()
	var rows []Row
	for v, c := range d.Occurrences() {
		rows = append(rows, Row{
			Value:       v,
			Occurrences: c,
			Probability: new(big.Rat).SetFrac(c, total),
		})
	}
	return rows
}

// Summary returns a one-line summary of d.
func Summary(d distribution.Distribution) string {
	return fmt.Sprintf("min %d, max %d, mean %.4f, total %s", d.Min(), d.Max(), d.Mean(), d.Total())
}

// WriteTable writes a table of d to w, headed by the expression's display
// form and followed by Summary.
func WriteTable(w io.Writer, expr string, d distribution.Distribution) error {
	rows := Rows(d)
	var peak float64
	for _, r := range rows {
		peak = max(peak, r.Percent())
	}

	if _, err := fmt.Fprintln(w, expr); err != nil {
		return err
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Value", "Occurrences", "Probability", "%", ""})
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	for _, r := range rows {
		bar := 0
		if peak > 0 {
			bar = int(r.Percent() / peak * BarWidth)
		}
		table.Append([]string{
			strconv.Itoa(r.Value),
			r.Occurrences.String(),
			r.Probability.RatString(),
			strconv.FormatFloat(r.Percent(), 'f', 2, 64),
			strings.Repeat("#", bar),
		})
	}
	table.Render()
	_, err := fmt.Fprintln(w, Summary(d))
	return err
}

// Struct converts d to a protobuf Struct. Occurrence counts are carried as
// decimal strings because they can exceed the range of a double.
func Struct(expr string, d distribution.Distribution) *structpb.Struct {
	occurrences := make([]*structpb.Value, 0)
	for _, r := range Rows(d) {
		occurrences = append(occurrences, structpb.NewStructValue(&structpb.Struct{
			Fields: map[string]*structpb.Value{
				"value":       structpb.NewNumberValue(float64(r.Value)),
				"occurrences": structpb.NewStringValue(r.Occurrences.String()),
				"probability": structpb.NewStringValue(r.Probability.RatString()),
				"percent":     structpb.NewNumberValue(r.Percent()),
			},
		}))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"expression":  structpb.NewStringValue(expr),
		"min":         structpb.NewNumberValue(float64(d.Min())),
		"max":         structpb.NewNumberValue(float64(d.Max())),
		"mean":        structpb.NewNumberValue(d.Mean()),
		"total":       structpb.NewStringValue(d.Total().String()),
		"occurrences": structpb.NewListValue(&structpb.ListValue{Values: occurrences}),
	}}
}

// FromStruct rebuilds a distribution from the output of Struct.
func FromStruct(s *structpb.Struct) (distribution.Distribution, error) {
	list := s.GetFields()["occurrences"].GetListValue()
	if list == nil {
		return distribution.Distribution{}, fmt.Errorf("report: missing occurrences")
	}
	var (
		offset int
		counts []*big.Int
	)
	for i, item := range list.GetValues() {
		fields := item.GetStructValue().GetFields()
		v := int(fields["value"].GetNumberValue())
		c, ok := new(big.Int).SetString(fields["occurrences"].GetStringValue(), 10)
		if !ok {
			return distribution.Distribution{}, fmt.Errorf("report: occurrence %d: bad count %q", i, fields["occurrences"].GetStringValue())
		}
		if i == 0 {
			offset = v
		}
		if v < offset+len(counts) {
			return distribution.Distribution{}, fmt.Errorf("report: occurrence %d: value %d out of order", i, v)
		}
		for offset+len(counts) < v {
			counts = append(counts, new(big.Int))
		}
		counts = append(counts, c)
	}
	return distribution.FromOccurrences(offset, counts)
}
