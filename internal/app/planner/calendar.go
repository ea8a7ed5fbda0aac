package planner

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/PabloGalante/nota-agent/internal/domain"
)

const calendarRenderURL = "https://calendar.google.com/calendar/render"

// eventWindow returns the 09:00-10:00 UTC slot on the event's date.
func eventWindow(ev domain.PlannedEvent) (time.Time, time.Time, error) {
	day, err := time.Parse(domain.DateLayout, ev.Date)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("event %q: %w", ev.Title, err)
	}
	start := day.Add(9 * time.Hour)
	return start, start.Add(time.Hour), nil
}

// GoogleCalendarLink builds a calendar template link for ev.
func GoogleCalendarLink(ev domain.PlannedEvent) string {
	day := strings.ReplaceAll(ev.Date, "-", "")

	q := url.Values{}
	q.Set("action", "TEMPLATE")
	q.Set("text", ev.Title)
	q.Set("dates", day+"T090000Z/"+day+"T100000Z")
	q.Set("details", ev.Description)
	return calendarRenderURL + "?" + q.Encode()
}

// EventUID identifies ev in exported calendars. It depends only on the
// owner and the event's own fields, so re-exports keep the same UIDs.
func EventUID(userID domain.UserID, ev domain.PlannedEvent) string {
	key := strings.Join([]string{string(userID), ev.Date, string(ev.Type), ev.Title, ev.Description}, "\x00")
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(key)).String() + "@nota"
}

// ExportICS renders the timeline as an iCalendar document. Events whose
// date cannot be parsed are skipped, as are exact duplicates.
func ExportICS(userID domain.UserID, timeline domain.EventTimeline, now time.Time) string {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//Nota//Timeboard//TR")

	seen := make(map[string]struct{}, len(timeline))
	for _, ev := range timeline {
		start, end, err := eventWindow(ev)
		if err != nil {
			continue
		}
		uid := EventUID(userID, ev)
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}

		vevent := cal.AddEvent(uid)
		vevent.SetDtStampTime(now.UTC())
		vevent.SetStartAt(start)
		vevent.SetEndAt(end)
		vevent.SetSummary(ev.Title)
		if ev.Description != "" {
			vevent.SetDescription(ev.Description)
		}
		vevent.AddProperty(ics.ComponentPropertyCategories, string(ev.Type))
	}

	return cal.Serialize()
}
