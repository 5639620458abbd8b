package holiday

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDateStatus(t *testing.T) {
	cases := []struct {
		name    string
		date    string
		typ     string
		holName string
		special bool
	}{
		{"spring festival", "2026-02-17", TypeHoliday, "春节", true},
		{"national day", "2026-10-01", TypeHoliday, "国庆", true},
		{"make-up workday on a saturday", "2026-02-14", TypeWorkday, "补班", true},
		{"ordinary saturday", "2026-03-14", TypeHoliday, "", false},
		{"ordinary sunday", "2026-03-15", TypeHoliday, "", false},
		{"ordinary weekday", "2026-03-16", TypeWorkday, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := DateStatus(day(tc.date))
			if st.Type != tc.typ || st.Name != tc.holName || st.Special != tc.special {
				t.Errorf("DateStatus(%s) = %+v", tc.date, st)
			}
		})
	}
}

func TestAllIsCopied(t *testing.T) {
	a := All()
	if len(a) == 0 {
		t.Fatal("calendar empty")
	}
	a[0].Name = "mutated"
	if All()[0].Name == "mutated" {
		t.Error("All must return a copy")
	}
}
