package flow

import (
	"sort"
	"strings"
	"time"

	"flowdesk/internal/domain"
)

// DeltaRange is an inclusive |delta| band.
type DeltaRange struct {
	Name  string  `json:"name"`
	Label string  `json:"label"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// Contains reports whether absDelta lies inside the band.
func (r DeltaRange) Contains(absDelta float64) bool {
	return absDelta >= r.Min && absDelta <= r.Max
}

// DeltaPresets are the named bands offered by the flow chart.
var DeltaPresets = []DeltaRange{
	{Name: "all", Label: "All", Min: 0, Max: 1},
	{Name: "atm", Label: "ATM (0.4-0.6)", Min: 0.4, Max: 0.6},
	{Name: "itm", Label: "ITM (>0.6)", Min: 0.6, Max: 1},
	{Name: "otm", Label: "OTM (<0.4)", Min: 0, Max: 0.4},
	{Name: "deep-itm", Label: "Deep ITM (>0.8)", Min: 0.8, Max: 1},
}

// PresetByName looks up a preset case-insensitively.
func PresetByName(name string) (DeltaRange, bool) {
	for _, p := range DeltaPresets {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return DeltaRange{}, false
}

// FlowPoint is the call and put volume printed within one minute.
type FlowPoint struct {
	Time  time.Time `json:"time"`
	Calls int       `json:"calls"`
	Puts  int       `json:"puts"`
	Net   int       `json:"net"`
}

// FlowSeries is the per-minute call/put flow for one delta band.
type FlowSeries struct {
	Range      DeltaRange  `json:"range"`
	Points     []FlowPoint `json:"points"`
	TotalCalls int         `json:"totalCalls"`
	TotalPuts  int         `json:"totalPuts"`
	Net        int         `json:"net"`
	Skipped    int         `json:"skipped"` // in-band trades with unparseable timestamps
}

// BuildFlowSeries buckets in-band trades by minute. Totals cover every
// in-band trade; points only those whose timestamp parses.
func BuildFlowSeries(trades []domain.OptionTrade, r DeltaRange, loc *time.Location) FlowSeries {
	fs := FlowSeries{Range: r, Points: make([]FlowPoint, 0)}
	buckets := make(map[int64]*FlowPoint)

	for i := range trades {
		t := &trades[i]
		if !r.Contains(t.AbsDelta) {
			continue
		}
		if t.Type == domain.OptionTypeCall {
			fs.TotalCalls += t.Quantity
		} else {
			fs.TotalPuts += t.Quantity
		}

		ts, err := ParseTime(t.Timestamp, loc)
		if err != nil {
			fs.Skipped++
			continue
		}
		minute := ts.Truncate(time.Minute)
		key := minute.Unix()
		p, ok := buckets[key]
		if !ok {
			p = &FlowPoint{Time: minute}
			buckets[key] = p
		}
		if t.Type == domain.OptionTypeCall {
			p.Calls += t.Quantity
		} else {
			p.Puts += t.Quantity
		}
	}
	fs.Net = fs.TotalCalls - fs.TotalPuts

	for _, p := range buckets {
		p.Net = p.Calls - p.Puts
		fs.Points = append(fs.Points, *p)
	}
	sort.Slice(fs.Points, func(i, j int) bool {
		return fs.Points[i].Time.Before(fs.Points[j].Time)
	})
	return fs
}
