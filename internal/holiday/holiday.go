// Package holiday carries the mainland-China public holiday calendar for
// 2026, including the State Council make-up workday swaps, so the frontend
// can shade concert dates that fall on days off.
package holiday

import "time"

const (
	TypeHoliday = "holiday"
	TypeWorkday = "workday"
)

type Info struct {
	Date string `json:"date"` // YYYY-MM-DD
	Type string `json:"type"`
	Name string `json:"name"`
}

// Status describes a single calendar day. Special is true only for dates on
// the official adjustment list; ordinary weekends count as holidays but
// carry no name.
type Status struct {
	Type    string `json:"type"`
	Name    string `json:"name,omitempty"`
	Special bool   `json:"isSpecial"`
}

var calendar2026 = []Info{
	{"2026-01-01", TypeHoliday, "元旦"},
	{"2026-01-02", TypeHoliday, "元旦"},
	{"2026-01-03", TypeHoliday, "元旦"},
	{"2026-01-04", TypeWorkday, "补班"},

	{"2026-02-14", TypeWorkday, "补班"},
	{"2026-02-15", TypeHoliday, "春节"},
	{"2026-02-16", TypeHoliday, "春节"},
	{"2026-02-17", TypeHoliday, "春节"},
	{"2026-02-18", TypeHoliday, "春节"},
	{"2026-02-19", TypeHoliday, "春节"},
	{"2026-02-20", TypeHoliday, "春节"},
	{"2026-02-21", TypeHoliday, "春节"},
	{"2026-02-22", TypeHoliday, "春节"},
	{"2026-02-23", TypeHoliday, "春节"},
	{"2026-02-28", TypeWorkday, "补班"},

	{"2026-04-04", TypeHoliday, "清明"},
	{"2026-04-05", TypeHoliday, "清明"},
	{"2026-04-06", TypeHoliday, "清明"},

	{"2026-05-01", TypeHoliday, "劳动节"},
	{"2026-05-02", TypeHoliday, "劳动节"},
	{"2026-05-03", TypeHoliday, "劳动节"},
	{"2026-05-04", TypeHoliday, "劳动节"},
	{"2026-05-05", TypeHoliday, "劳动节"},
	{"2026-05-09", TypeWorkday, "补班"},

	{"2026-06-19", TypeHoliday, "端午"},
	{"2026-06-20", TypeHoliday, "端午"},
	{"2026-06-21", TypeHoliday, "端午"},

	{"2026-09-25", TypeHoliday, "中秋"},
	{"2026-09-26", TypeHoliday, "中秋"},
	{"2026-09-27", TypeHoliday, "中秋"},

	{"2026-09-20", TypeWorkday, "补班"},
	{"2026-10-01", TypeHoliday, "国庆"},
	{"2026-10-02", TypeHoliday, "国庆"},
	{"2026-10-03", TypeHoliday, "国庆"},
	{"2026-10-04", TypeHoliday, "国庆"},
	{"2026-10-05", TypeHoliday, "国庆"},
	{"2026-10-06", TypeHoliday, "国庆"},
	{"2026-10-07", TypeHoliday, "国庆"},
	{"2026-10-10", TypeWorkday, "补班"},
}

var byDate = func() map[string]Info {
	m := make(map[string]Info, len(calendar2026))
	for _, h := range calendar2026 {
		m[h.Date] = h
	}
	return m
}()

// All returns the adjustment list in calendar order.
func All() []Info {
	out := make([]Info, len(calendar2026))
	copy(out, calendar2026)
	return out
}

// DateStatus classifies a day: adjustment list first, then weekend, then
// regular workday.
func DateStatus(t time.Time) Status {
	if h, ok := byDate[t.Format("2006-01-02")]; ok {
		return Status{Type: h.Type, Name: h.Name, Special: true}
	}
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return Status{Type: TypeHoliday}
	}
	return Status{Type: TypeWorkday}
}
