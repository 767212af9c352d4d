package content

import (
	"strings"
	"testing"
	"time"

	"messageai/api/internal/nudge"
)

func TestPostSessionNoteWithoutPartner(t *testing.T) {
	msg, err := Render(nudge.KindPostSessionNote, nudge.Context{SessionTitle: "Algebra Review"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(msg, "Algebra Review") {
		t.Errorf("message should contain the session title: %q", msg)
	}
	if !strings.Contains(msg, "session go") {
		t.Errorf("post-session prompt should ask how the session went: %q", msg)
	}
	if strings.Contains(msg, "with") {
		t.Errorf("no partner supplied, message must omit the with-clause entirely: %q", msg)
	}
}

func TestPostSessionNoteWithPartner(t *testing.T) {
	msg, err := Render(nudge.KindPostSessionNote, nudge.Context{
		SessionTitle: "Algebra Review",
		PartnerName:  "Jordan",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(msg, "with Jordan") {
		t.Errorf("partner supplied, message should name them: %q", msg)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	in := nudge.Context{SessionTitle: "Chemistry", PartnerName: "Sam"}
	first, err := Render(nudge.Kind24hBefore, in)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	for i := 0; i < 5; i++ {
		again, err := Render(nudge.Kind24hBefore, in)
		if err != nil {
			t.Fatalf("Render failed: %v", err)
		}
		if again != first {
			t.Fatalf("render %d differed: %q vs %q", i, again, first)
		}
	}
}

func TestEventTimeRenderedInRecipientTimezone(t *testing.T) {
	eventAt := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	in := nudge.Context{
		SessionTitle: "SAT Prep",
		EventTime:    eventAt,
		Timezone:     "America/New_York",
	}
	msg, err := Render(nudge.Kind24hBefore, in)
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	// 18:00 UTC is 14:00 in New York during DST.
	if !strings.Contains(msg, "2:00 PM") {
		t.Errorf("expected event time in recipient timezone, got %q", msg)
	}
}

func TestUnknownTimezoneFallsBackToUTC(t *testing.T) {
	eventAt := time.Date(2026, 3, 15, 18, 0, 0, 0, time.UTC)
	msg, err := Render(nudge.Kind2hBefore, nudge.Context{
		SessionTitle: "Physics",
		EventTime:    eventAt,
		Timezone:     "Not/AZone",
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(msg, "6:00 PM") {
		t.Errorf("expected UTC fallback formatting, got %q", msg)
	}
}

func TestLongGapAlert(t *testing.T) {
	msg, err := Render(nudge.KindLongGapAlert, nudge.Context{DaysSince: 16, PartnerName: "Riley"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(msg, "16 days") || !strings.Contains(msg, "with Riley") {
		t.Errorf("unexpected long-gap message: %q", msg)
	}

	anon, err := Render(nudge.KindLongGapAlert, nudge.Context{DaysSince: 16})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if strings.Contains(anon, "with") {
		t.Errorf("no partner supplied, message must omit the with-clause: %q", anon)
	}
}

func TestTaskTemplates(t *testing.T) {
	due, err := Render(nudge.KindTaskDueToday, nudge.Context{TaskTitle: "Finish worksheet"})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(due, "Finish worksheet") || !strings.Contains(due, "due today") {
		t.Errorf("unexpected due-today message: %q", due)
	}

	overdue, err := Render(nudge.KindTaskOverdue, nudge.Context{
		TaskTitle: "Finish worksheet",
		EventTime: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if !strings.Contains(overdue, "overdue") || !strings.Contains(overdue, "Mar 10") {
		t.Errorf("unexpected overdue message: %q", overdue)
	}
}

func TestEveryKindHasATemplate(t *testing.T) {
	kinds := []nudge.Kind{
		nudge.KindPostSessionNote, nudge.Kind24hBefore, nudge.Kind2hBefore,
		nudge.KindTaskDueToday, nudge.KindTaskOverdue,
		nudge.KindUnconfirmed24h, nudge.KindLongGapAlert,
	}
	for _, k := range kinds {
		if _, err := Render(k, nudge.Context{SessionTitle: "x", TaskTitle: "y"}); err != nil {
			t.Errorf("kind %s has no working template: %v", k, err)
		}
	}
}

func TestUnknownKindRejected(t *testing.T) {
	if _, err := Render(nudge.Kind("bogus"), nudge.Context{}); err == nil {
		t.Error("unknown kind must be an error")
	}
}
