package documents

import (
	"fmt"
	"time"
)

var spanishMonths = [...]string{
	"enero", "febrero", "marzo", "abril", "mayo", "junio",
	"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
}

// LongDate renders t as "16 de octubre de 2026".
func LongDate(t time.Time, loc *time.Location) string {
	t = inLocation(t, loc)
	return fmt.Sprintf("%d de %s de %d", t.Day(), spanishMonths[t.Month()-1], t.Year())
}

// ShortDate renders t as DD/MM/YYYY.
func ShortDate(t time.Time, loc *time.Location) string {
	return inLocation(t, loc).Format("02/01/2006")
}

func inLocation(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		return t
	}
	return t.In(loc)
}
