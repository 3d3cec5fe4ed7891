package ui

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"shiftcast/internal/forecast"
)

// TableRenderer writes prediction and feature tables.
type TableRenderer struct {
	w        io.Writer
	useColor bool
}

// NewTableRenderer renders to w. Colors are only used when useColor is set.
func NewTableRenderer(w io.Writer, useColor bool) *TableRenderer {
	return &TableRenderer{w: w, useColor: useColor}
}

func (r *TableRenderer) newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(r.w)
	table.SetHeader(header)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

// Predictions renders one row per location in the given order, with the top
// location highlighted. Negative predictions are shown as zero.
func (r *TableRenderer) Predictions(city string, shift forecast.Shift, rows []forecast.PredictionRow) {
	rows = forecast.ClampForDisplay(rows)

	fmt.Fprintf(r.w, "%s %s shift, %d locations\n", city, shift, len(rows))

	table := r.newTable([]string{"Location", "Latitude", "Longitude", "Avg Shift Sales", "Predicted"})

	var total float64
	top := topPrediction(rows)
	for _, row := range rows {
		predicted := formatMoney(row.PredictedShiftSales)
		if r.useColor && len(rows) > 1 && row.PredictedShiftSales == top && top > 0 {
			predicted = color.GreenString(predicted)
		} else if r.useColor && row.PredictedShiftSales == 0 {
			predicted = color.New(color.Faint).Sprint(predicted)
		}
		total += row.PredictedShiftSales

		table.Append([]string{
			strconv.FormatInt(row.LocationID, 10),
			formatCoord(row.Latitude),
			formatCoord(row.Longitude),
			formatMoney(row.AvgLocationShiftSales),
			predicted,
		})
	}
	table.SetFooter([]string{"", "", "", "Total", formatMoney(total)})
	table.Render()
}

// Features renders the model inputs for each location.
func (r *TableRenderer) Features(rows []forecast.FeatureRow) {
	header := append([]string{"Location"}, forecast.FeatureColumns...)
	table := r.newTable(header)

	for _, row := range rows {
		cells := []string{strconv.FormatInt(row.LocationID, 10)}
		for i, v := range row.Vector() {
			switch forecast.FeatureColumns[i] {
			case "LATITUDE", "LONGITUDE":
				cells = append(cells, formatCoord(v))
			case "CITY_POPULATION", "MONTH", "DAY_OF_WEEK", "SHIFT":
				cells = append(cells, strconv.FormatFloat(v, 'f', 0, 64))
			default:
				cells = append(cells, formatMoney(v))
			}
		}
		table.Append(cells)
	}
	table.Render()
}

// Cities renders a single-column list.
func (r *TableRenderer) Cities(cities []string) {
	table := r.newTable([]string{"City"})
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	for _, c := range cities {
		table.Append([]string{c})
	}
	table.Render()
}

func topPrediction(rows []forecast.PredictionRow) float64 {
	var top float64
	for _, r := range rows {
		if r.PredictedShiftSales > top {
			top = r.PredictedShiftSales
		}
	}
	return top
}

func formatMoney(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	intPart, frac, _ := strings.Cut(s, ".")
	neg := strings.HasPrefix(intPart, "-")
	intPart = strings.TrimPrefix(intPart, "-")

	var b strings.Builder
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	out := b.String() + "." + frac
	if neg {
		out = "-" + out
	}
	return out
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
