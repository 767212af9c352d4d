package nudge

import (
	"strings"
	"testing"
)

func TestCompositeKeyFormat(t *testing.T) {
	key := CompositeKey(EntityEvent, "evt123", "user456", Kind24hBefore)
	if key != "event_evt123_user456_24h_before" {
		t.Errorf("unexpected key: %s", key)
	}
}

func TestCompositeKeyDeterministic(t *testing.T) {
	a := CompositeKey(EntityTask, "tsk1", "u1", KindTaskOverdue)
	b := CompositeKey(EntityTask, "tsk1", "u1", KindTaskOverdue)
	if a != b {
		t.Errorf("same inputs produced different keys: %s vs %s", a, b)
	}
}

func TestCompositeKeyDistinguishesInputs(t *testing.T) {
	base := CompositeKey(EntityEvent, "evt1", "u1", KindPostSessionNote)
	variants := []string{
		CompositeKey(EntityTask, "evt1", "u1", KindPostSessionNote),
		CompositeKey(EntityEvent, "evt2", "u1", KindPostSessionNote),
		CompositeKey(EntityEvent, "evt1", "u2", KindPostSessionNote),
		CompositeKey(EntityEvent, "evt1", "u1", KindLongGapAlert),
	}
	for _, v := range variants {
		if v == base {
			t.Errorf("variant key collided with base: %s", v)
		}
	}
}

func TestCandidateKey(t *testing.T) {
	c := Candidate{
		EntityType:   EntityConversation,
		EntityID:     "conv9",
		TargetUserID: "u7",
		Kind:         KindLongGapAlert,
	}
	if c.Key() != "conversation_conv9_u7_long_gap_alert" {
		t.Errorf("unexpected candidate key: %s", c.Key())
	}
	if parts := strings.SplitN(c.Key(), "_", 4); len(parts) != 4 {
		t.Errorf("key must have four underscore-delimited segments, got %v", parts)
	}
}

func TestPreferencesGlobalKillSwitch(t *testing.T) {
	p := DefaultPreferences("u1")
	p.Enabled = false
	kinds := []Kind{
		KindPostSessionNote, Kind24hBefore, Kind2hBefore,
		KindTaskDueToday, KindTaskOverdue, KindUnconfirmed24h, KindLongGapAlert,
	}
	for _, k := range kinds {
		if p.Allows(k) {
			t.Errorf("disabled user must not allow %s", k)
		}
	}
}

func TestPreferencesPerKindSwitches(t *testing.T) {
	p := DefaultPreferences("u1")
	p.PostSessionNotesEnabled = false
	if p.Allows(KindPostSessionNote) {
		t.Error("post-session switch off must block post_session_note")
	}
	if !p.Allows(KindLongGapAlert) || !p.Allows(KindUnconfirmed24h) {
		t.Error("other per-kind switches must be unaffected")
	}
	if !p.Allows(KindTaskDueToday) {
		t.Error("kinds without a dedicated switch follow the global switch")
	}
}

func TestDefaultPreferencesAllEnabled(t *testing.T) {
	p := DefaultPreferences("u9")
	if !p.Enabled || !p.PostSessionNotesEnabled || !p.LongGapAlertsEnabled || !p.UnconfirmedEventsEnabled {
		t.Errorf("defaults must enable everything: %+v", p)
	}
}
