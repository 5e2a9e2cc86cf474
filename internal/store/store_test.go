package store

import (
	"strings"
	"testing"
	"time"

	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/models"
)

func card(id string, page int) models.Card {
	return models.Card{ID: id, Type: models.CardTypeBasic, Front: "Q " + id, Back: "A " + id, PageNumber: page}
}

func TestCreateManual(t *testing.T) {
	s := NewProjectStore()
	s.SetName("lecture.pdf")

	c := s.CreateManual(3, models.CardTypeBasic)
	if c.ID == "" {
		t.Fatal("expected generated id")
	}
	if c.PageNumber != 3 || c.FileName != "lecture.pdf" {
		t.Errorf("unexpected card: %+v", c)
	}
	if s.EditingCardID() != c.ID {
		t.Error("new card not focused for editing")
	}

	c2 := s.CreateManual(3, models.CardTypeBasic)
	if c2.ID == c.ID {
		t.Error("ids must be unique")
	}

	c3 := s.CreateManual(0, "bogus")
	if c3.Type != models.CardTypeBasic {
		t.Errorf("unknown type should default to basic, got %q", c3.Type)
	}
}

func TestUpdate_UnknownIDIsNoOp(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1)})

	front := "changed"
	if s.Update("missing", models.CardUpdate{Front: &front}) {
		t.Error("update of unknown id must report false")
	}
	if s.Cards()[0].Front != "Q a" {
		t.Error("unrelated card was mutated")
	}
}

func TestUpdate_PartialPatch(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1)})

	back := "new answer"
	if !s.Update("a", models.CardUpdate{Back: &back}) {
		t.Fatal("expected update to apply")
	}
	got := s.Cards()[0]
	if got.Back != "new answer" {
		t.Errorf("back = %q", got.Back)
	}
	if got.Front != "Q a" {
		t.Error("nil field must be left untouched")
	}
}

func TestUpdate_ClozeConversionKeepsFields(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1)})

	typ := models.CardTypeCloze
	text := "The {{c1::sun}} is a star."
	s.Update("a", models.CardUpdate{Type: &typ, Text: &text})

	got := s.Cards()[0]
	if got.Type != models.CardTypeCloze || got.Text != text {
		t.Errorf("unexpected card: %+v", got)
	}
	if got.Back != "A a" {
		t.Error("back should survive a type change")
	}
}

func TestUpdate_ClearsEditingFocus(t *testing.T) {
	s := NewProjectStore()
	c := s.CreateManual(1, models.CardTypeBasic)

	front := "done"
	s.Update(c.ID, models.CardUpdate{Front: &front})
	if s.EditingCardID() != "" {
		t.Error("editing focus should clear after the edit lands")
	}
}

func TestBulkDelete_PreservesSurvivorOrder(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1), card("b", 1), card("c", 2), card("d", 2)})
	s.ToggleSelection("b")
	s.ToggleSelection("d")

	removed := s.BulkDelete([]string{"b", "d", "nope"})
	if removed != 2 {
		t.Fatalf("removed = %d, want 2", removed)
	}

	cards := s.Cards()
	if len(cards) != 2 || cards[0].ID != "a" || cards[1].ID != "c" {
		t.Errorf("unexpected survivors: %+v", cards)
	}
	if len(s.SelectedCardIDs()) != 0 {
		t.Error("selection must clear after bulk delete")
	}
}

func TestReorder(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1), card("b", 1), card("c", 1)})

	if !s.Reorder(0, 2) {
		t.Fatal("expected reorder to apply")
	}
	got := s.Cards()
	if got[0].ID != "b" || got[1].ID != "c" || got[2].ID != "a" {
		t.Errorf("unexpected order: %s %s %s", got[0].ID, got[1].ID, got[2].ID)
	}

	if s.Reorder(0, 5) {
		t.Error("out-of-range reorder must be rejected")
	}
}

func TestAddTags_DedupCaseSensitive(t *testing.T) {
	s := NewProjectStore()
	c := card("a", 1)
	c.Tags = []string{"Bio", "exam"}
	s.Append([]models.Card{c})

	s.AddTags([]string{"a", "ghost"}, []string{"bio", "exam", "new"})

	got := s.Cards()[0].Tags
	want := []string{"Bio", "exam", "bio", "new"}
	if len(got) != len(want) {
		t.Fatalf("tags = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("tags[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestMergeImport(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("a", 1), card("b", 2)})

	imported := []models.Card{
		{ID: "a", Type: models.CardTypeBasic, Front: "replaced", PageNumber: 5},
		card("z", 3),
	}
	replaced, added := s.MergeImport(imported)
	if replaced != 1 || added != 1 {
		t.Fatalf("replaced=%d added=%d", replaced, added)
	}

	cards := s.Cards()
	if len(cards) != 3 {
		t.Fatalf("len = %d", len(cards))
	}
	if cards[0].Front != "replaced" || cards[0].PageNumber != 5 {
		t.Error("existing id must be replaced wholesale")
	}
	if cards[2].ID != "z" {
		t.Error("new id must be appended")
	}

	// Importing the same archive again replaces everything, adds nothing.
	replaced, added = s.MergeImport(imported)
	if replaced != 2 || added != 0 {
		t.Errorf("second import: replaced=%d added=%d", replaced, added)
	}
	if len(s.Cards()) != 3 {
		t.Error("repeat import must not grow the collection")
	}
}

func TestGrouped_UnsortedFirstThenAscending(t *testing.T) {
	s := NewProjectStore()
	s.Append([]models.Card{card("p9", 9), card("u1", 0), card("p2", 2), card("u2", 0), card("p2b", 2)})

	groups := s.Grouped()
	if len(groups) != 3 {
		t.Fatalf("groups = %d, want 3", len(groups))
	}
	if groups[0].Label != "Unsorted" || len(groups[0].Cards) != 2 {
		t.Errorf("first group = %+v", groups[0])
	}
	if groups[1].Label != "Page 2" || groups[2].Label != "Page 9" {
		t.Errorf("page order wrong: %q, %q", groups[1].Label, groups[2].Label)
	}
}

func TestExistingContext(t *testing.T) {
	s := NewProjectStore()
	cloze := models.Card{ID: "c", Type: models.CardTypeCloze, Text: "The {{c1::sun}}.", PageNumber: 4}
	s.Append([]models.Card{card("a", 4), cloze, card("other", 5)})

	ctx := s.ExistingContext(4)
	if !strings.Contains(ctx, "Q: Q a") || !strings.Contains(ctx, "Cloze: The {{c1::sun}}.") {
		t.Errorf("context = %q", ctx)
	}
	if strings.Contains(ctx, "other") {
		t.Error("cards from other pages leaked into context")
	}

	if s.ExistingContext(99) != "" {
		t.Error("empty page must yield empty context")
	}
}

func TestOpen_PromptMergeHonorsModifiedFlags(t *testing.T) {
	s := NewProjectStore()
	custom := "my custom gemini prompt {{textContent}} {{existingContext}}"

	s.Open(models.ProjectMeta{
		PDFName: "doc.pdf",
		Prompts: map[string]string{
			"gemini": custom,
			"openai": llm.DefaultPromptTemplate,
		},
		PromptsModified: map[string]bool{"gemini": true},
	}, nil)

	if s.PromptFor("gemini") != custom {
		t.Error("modified prompt must survive open")
	}
	if s.PromptFor("openai") != llm.DefaultPromptTemplate {
		t.Error("unmodified prompt must come from defaults")
	}
}

func TestOpen_LegacyPromptInference(t *testing.T) {
	s := NewProjectStore()
	custom := "legacy handcrafted prompt"

	// No PromptsModified map at all: flags are inferred by comparing
	// against the standard template.
	s.Open(models.ProjectMeta{
		PDFName: "doc.pdf",
		Prompts: map[string]string{
			"anthropic": custom,
			"local":     llm.DefaultPromptTemplate,
		},
	}, nil)

	if s.PromptFor("anthropic") != custom {
		t.Error("non-standard legacy prompt must be treated as modified")
	}
	if s.PromptFor("local") != llm.DefaultPromptTemplate {
		t.Error("standard legacy prompt must not be marked modified")
	}
}

func TestSyncDefaultPrompts_SkipsModified(t *testing.T) {
	s := NewProjectStore()
	s.SetName("doc.pdf")
	s.SetPrompt("openai", "pinned")

	s.SyncDefaultPrompts(map[string]string{"openai": "new default", "gemini": "new gemini default"})

	if s.PromptFor("openai") != "pinned" {
		t.Error("user-modified prompt must not be overwritten")
	}
	if s.PromptFor("gemini") != "new gemini default" {
		t.Error("unmodified prompt must follow the new default")
	}
}

func TestRecordActivity_StreakMath(t *testing.T) {
	day := func(s string) time.Time {
		ts, _ := time.Parse("2006-01-02", s)
		return ts
	}

	s := NewProjectStore()

	got := s.RecordActivity(3, day("2026-03-10"))
	if got.StreakDays != 1 || got.TotalCards != 3 {
		t.Fatalf("first activity: %+v", got)
	}

	// Same day: streak unchanged.
	got = s.RecordActivity(2, day("2026-03-10"))
	if got.StreakDays != 1 || got.TotalCards != 5 {
		t.Errorf("same day: %+v", got)
	}
	if got.Activity["2026-03-10"] != 5 {
		t.Errorf("activity = %d, want 5", got.Activity["2026-03-10"])
	}

	// Next day: streak extends.
	got = s.RecordActivity(1, day("2026-03-11"))
	if got.StreakDays != 2 {
		t.Errorf("next day streak = %d, want 2", got.StreakDays)
	}

	// Gap: streak resets.
	got = s.RecordActivity(1, day("2026-03-14"))
	if got.StreakDays != 1 {
		t.Errorf("after gap streak = %d, want 1", got.StreakDays)
	}

	// Zero cards still counts as one unit of activity.
	got = s.RecordActivity(0, day("2026-03-14"))
	if got.Activity["2026-03-14"] != 2 {
		t.Errorf("zero-card activity = %d, want 2", got.Activity["2026-03-14"])
	}
}

func TestResetStats(t *testing.T) {
	s := NewProjectStore()
	s.RecordActivity(7, time.Now())
	s.AddStudyTime(120)
	s.RecordNewFile()

	got := s.ResetStats()
	if got.TotalCards != 0 || got.TotalFiles != 0 || got.StudySeconds != 0 {
		t.Errorf("counters survived reset: %+v", got)
	}
	if got.StreakDays != 1 {
		t.Errorf("streak after reset = %d, want 1", got.StreakDays)
	}
	if len(got.Activity) != 0 {
		t.Error("activity map must be cleared")
	}
}

func TestOpenResetRoundTrip(t *testing.T) {
	s := NewProjectStore()
	s.Open(models.ProjectMeta{
		PDFName:     "doc.pdf",
		Cards:       []models.Card{card("a", 1)},
		CurrentPage: 7,
	}, nil)

	if s.Name() != "doc.pdf" || s.CurrentPage() != 7 || len(s.Cards()) != 1 {
		t.Fatal("open did not hydrate workspace")
	}

	snap := s.Snapshot()
	if snap.Version != models.MetaVersion {
		t.Errorf("snapshot version = %d", snap.Version)
	}
	if snap.PDFName != "doc.pdf" || len(snap.Cards) != 1 {
		t.Error("snapshot does not reflect workspace")
	}

	s.Reset(nil)
	if s.Name() != "" || len(s.Cards()) != 0 || s.CurrentPage() != 1 {
		t.Error("reset did not clear workspace")
	}
}

func TestOnChangeFiresOnlyWithOpenProject(t *testing.T) {
	s := NewProjectStore()
	fired := 0
	s.OnChange(func() { fired++ })

	s.Append([]models.Card{card("a", 1)})
	if fired != 0 {
		t.Error("no project open, change trigger must stay silent")
	}

	s.SetName("doc.pdf")
	s.Append([]models.Card{card("b", 1)})
	if fired != 1 {
		t.Errorf("fired = %d, want 1", fired)
	}
}
