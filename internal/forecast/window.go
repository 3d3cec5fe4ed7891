package forecast

import (
	"sort"
	"time"
)

type partitionKey struct {
	locationID int64
	shift      Shift
}

func keyFor(r ShiftSalesRecord, partition Partition) partitionKey {
	if partition == PartitionLocationShift {
		return partitionKey{locationID: r.LocationID, shift: r.Shift}
	}
	return partitionKey{locationID: r.LocationID}
}

// ComputeTrailingAverage attaches to every record the mean of ShiftSales over
// the records of the same partition with a strictly earlier date. Placeholder
// rows never contribute. A record with no earlier observation gets 0.
// The output preserves input order.
func ComputeTrailingAverage(records []ShiftSalesRecord, partition Partition) []WindowedRecord {
	out := make([]WindowedRecord, len(records))
	groups := make(map[partitionKey][]int)
	var order []partitionKey

	for i, r := range records {
		out[i] = WindowedRecord{ShiftSalesRecord: r}
		k := keyFor(r, partition)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	for _, k := range order {
		idx := groups[k]
		sort.SliceStable(idx, func(a, b int) bool {
			return CalendarDate(records[idx[a]].Date).Before(CalendarDate(records[idx[b]].Date))
		})

		var sum float64
		var count int
		for start := 0; start < len(idx); {
			day := CalendarDate(records[idx[start]].Date)
			end := start
			for end < len(idx) && sameDay(records[idx[end]].Date, day) {
				end++
			}

			avg := 0.0
			if count > 0 {
				avg = sum / float64(count)
			}
			for _, i := range idx[start:end] {
				out[i].AvgLocationShiftSales = avg
			}

			// Same-day rows only become visible to later dates.
			for _, i := range idx[start:end] {
				if s := records[i].ShiftSales; s != nil {
					sum += *s
					count++
				}
			}
			start = end
		}
	}

	return out
}

func sameDay(t, day time.Time) bool {
	return CalendarDate(t).Equal(day)
}
