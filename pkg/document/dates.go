package document

import (
	"fmt"
	"time"
)

var indonesianMonths = [...]string{
	"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember",
}

// FormatDate renders t as an Indonesian long date, e.g. "17 Agustus 2025".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d", t.Day(), indonesianMonths[t.Month()-1], t.Year())
}

// FormatPeriod renders an inclusive validity period.
func FormatPeriod(from, until time.Time) string {
	return FormatDate(from) + " s/d " + FormatDate(until)
}
