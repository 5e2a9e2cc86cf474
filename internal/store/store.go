package store

import (
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"cardstudio-backend/internal/llm"
	"cardstudio-backend/internal/models"
)

// ProjectStore owns the in-memory workspace state for the currently open
// document: the card collection, per-page annotations, focus/selection
// state, per-project prompts and the global stats snapshot. It is the
// single mutation surface; persistence is write-behind and never
// authoritative over this state.
type ProjectStore struct {
	mu sync.RWMutex

	pdfName         string
	cards           []models.Card
	annotations     map[int][]models.Annotation
	currentPage     int
	activePage      int
	editingCardID   string
	selectedCardIDs []string
	prompts         map[string]string
	promptsModified map[string]bool
	stats           models.GlobalStats

	onChange      func()
	onStatsChange func()
}

func NewProjectStore() *ProjectStore {
	return &ProjectStore{
		annotations:     make(map[int][]models.Annotation),
		currentPage:     1,
		prompts:         DefaultPrompts(nil),
		promptsModified: make(map[string]bool),
	}
}

// DefaultPrompts builds the per-backend prompt set from the shared standard
// template, overlaid with the user's global defaults where present.
func DefaultPrompts(globalDefaults map[string]string) map[string]string {
	prompts := map[string]string{"default": llm.DefaultPromptTemplate}
	for _, backend := range models.Backends {
		prompts[backend] = llm.DefaultPromptTemplate
		if globalDefaults != nil && globalDefaults[backend] != "" {
			prompts[backend] = globalDefaults[backend]
		}
	}
	return prompts
}

// OnChange registers the write-behind trigger fired after every metadata
// mutation. OnStatsChange fires after stats mutations, which flush on their
// own schedule.
func (s *ProjectStore) OnChange(fn func())      { s.onChange = fn }
func (s *ProjectStore) OnStatsChange(fn func()) { s.onStatsChange = fn }

func (s *ProjectStore) notify() {
	if s.onChange != nil && s.Name() != "" {
		s.onChange()
	}
}

func (s *ProjectStore) notifyStats() {
	if s.onStatsChange != nil {
		s.onStatsChange()
	}
}

// Open hydrates the workspace from a loaded project. Prompt merging honors
// per-backend modified flags; legacy projects without flags infer them by
// comparing stored prompts against the standard and global defaults.
func (s *ProjectStore) Open(meta models.ProjectMeta, globalDefaults map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pdfName = meta.PDFName
	s.cards = append([]models.Card(nil), meta.Cards...)
	s.annotations = make(map[int][]models.Annotation, len(meta.Annotations))
	for page, anns := range meta.Annotations {
		s.annotations[page] = append([]models.Annotation(nil), anns...)
	}
	s.currentPage = meta.CurrentPage
	if s.currentPage < 1 {
		s.currentPage = 1
	}
	s.activePage = s.currentPage
	s.editingCardID = ""
	s.selectedCardIDs = nil
	if meta.Stats != nil {
		s.stats = *meta.Stats
	}

	defaults := DefaultPrompts(globalDefaults)
	modified := meta.PromptsModified
	if modified == nil {
		// Legacy project: infer flags from content.
		modified = make(map[string]bool)
		for backend, text := range meta.Prompts {
			modified[backend] = !isStandardPrompt(text, globalDefaults)
		}
	}

	merged := defaults
	for backend, text := range meta.Prompts {
		if modified[backend] && text != "" {
			merged[backend] = text
		}
	}
	s.prompts = merged
	s.promptsModified = modified
}

func isStandardPrompt(text string, globalDefaults map[string]string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || trimmed == strings.TrimSpace(llm.DefaultPromptTemplate) {
		return true
	}
	for _, def := range globalDefaults {
		if def != "" && trimmed == strings.TrimSpace(def) {
			return true
		}
	}
	return false
}

// Reset clears the workspace, e.g. when the document is closed.
func (s *ProjectStore) Reset(globalDefaults map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pdfName = ""
	s.cards = nil
	s.annotations = make(map[int][]models.Annotation)
	s.currentPage = 1
	s.activePage = 0
	s.editingCardID = ""
	s.selectedCardIDs = nil
	s.prompts = DefaultPrompts(globalDefaults)
	s.promptsModified = make(map[string]bool)
}

// Snapshot returns the persistable metadata view of the current state.
func (s *ProjectStore) Snapshot() models.ProjectMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := s.stats
	annotations := make(map[int][]models.Annotation, len(s.annotations))
	for page, anns := range s.annotations {
		annotations[page] = append([]models.Annotation(nil), anns...)
	}

	return models.ProjectMeta{
		Version:         models.MetaVersion,
		Timestamp:       time.Now().UnixMilli(),
		PDFName:         s.pdfName,
		Cards:           append([]models.Card(nil), s.cards...),
		Annotations:     annotations,
		CurrentPage:     s.currentPage,
		Stats:           &stats,
		Prompts:         copyStringMap(s.prompts),
		PromptsModified: copyBoolMap(s.promptsModified),
	}
}

func (s *ProjectStore) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pdfName
}

func (s *ProjectStore) SetName(name string) {
	s.mu.Lock()
	s.pdfName = name
	s.mu.Unlock()
}

func (s *ProjectStore) Cards() []models.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Card(nil), s.cards...)
}

func (s *ProjectStore) CurrentPage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentPage
}

func (s *ProjectStore) SetCurrentPage(page int) {
	s.mu.Lock()
	s.currentPage = page
	s.mu.Unlock()
	s.notify()
}

func (s *ProjectStore) ActivePage() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activePage
}

func (s *ProjectStore) SetActivePage(page int) {
	s.mu.Lock()
	s.activePage = page
	s.mu.Unlock()
}

func (s *ProjectStore) EditingCardID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editingCardID
}

func (s *ProjectStore) SetEditingCardID(id string) {
	s.mu.Lock()
	s.editingCardID = id
	s.mu.Unlock()
}

// CreateManual synthesizes an empty card of the given type on the given
// page and focuses it for editing.
func (s *ProjectStore) CreateManual(pageNumber int, cardType string) models.Card {
	if cardType != models.CardTypeCloze {
		cardType = models.CardTypeBasic
	}

	s.mu.Lock()
	card := models.Card{
		ID:         uuid.New().String(),
		Type:       cardType,
		Tags:       []string{},
		PageNumber: pageNumber,
		FileName:   s.pdfName,
	}
	s.cards = append(s.cards, card)
	s.editingCardID = card.ID
	s.mu.Unlock()

	s.notify()
	return card
}

// Append adds a generated batch in one state transition.
func (s *ProjectStore) Append(cards []models.Card) {
	if len(cards) == 0 {
		return
	}
	s.mu.Lock()
	s.cards = append(s.cards, cards...)
	s.mu.Unlock()
	s.notify()
}

// Update shallow-merges the patch into the matching card. Unknown ids are a
// no-op.
func (s *ProjectStore) Update(id string, patch models.CardUpdate) bool {
	s.mu.Lock()
	updated := false
	for i := range s.cards {
		if s.cards[i].ID != id {
			continue
		}
		applyPatch(&s.cards[i], patch)
		updated = true
		break
	}
	if updated && s.editingCardID == id {
		s.editingCardID = ""
	}
	s.mu.Unlock()

	if updated {
		s.notify()
	}
	return updated
}

func applyPatch(c *models.Card, patch models.CardUpdate) {
	if patch.Type != nil {
		c.Type = *patch.Type
	}
	if patch.Front != nil {
		c.Front = *patch.Front
	}
	if patch.Back != nil {
		c.Back = *patch.Back
	}
	if patch.Text != nil {
		c.Text = *patch.Text
	}
	if patch.Tags != nil {
		c.Tags = append([]string(nil), (*patch.Tags)...)
	}
	if patch.FrontImages != nil {
		c.FrontImages = append([]string(nil), (*patch.FrontImages)...)
	}
	if patch.BackImages != nil {
		c.BackImages = append([]string(nil), (*patch.BackImages)...)
	}
	if patch.PageNumber != nil {
		c.PageNumber = *patch.PageNumber
	}
}

func (s *ProjectStore) Delete(id string) bool {
	return s.BulkDelete([]string{id}) > 0
}

// BulkDelete removes every card whose id is in the set, preserving the
// relative order of the survivors, and clears the selection.
func (s *ProjectStore) BulkDelete(ids []string) int {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	s.mu.Lock()
	kept := s.cards[:0]
	removed := 0
	for _, c := range s.cards {
		if _, gone := idSet[c.ID]; gone {
			removed++
			if s.editingCardID == c.ID {
				s.editingCardID = ""
			}
			continue
		}
		kept = append(kept, c)
	}
	s.cards = kept
	s.selectedCardIDs = nil
	s.mu.Unlock()

	if removed > 0 {
		s.notify()
	}
	return removed
}

// Reorder moves one card within the flat sequence. Page reassignment across
// group boundaries is a separate Update the caller issues alongside.
func (s *ProjectStore) Reorder(from, to int) bool {
	s.mu.Lock()
	if from < 0 || from >= len(s.cards) || to < 0 || to >= len(s.cards) {
		s.mu.Unlock()
		return false
	}
	moved := s.cards[from]
	s.cards = append(s.cards[:from], s.cards[from+1:]...)
	s.cards = append(s.cards[:to], append([]models.Card{moved}, s.cards[to:]...)...)
	s.mu.Unlock()

	s.notify()
	return true
}

// AddTags unions the new tags into every matching card, case-sensitive and
// deduplicated. Non-matching ids are ignored.
func (s *ProjectStore) AddTags(ids []string, tags []string) {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	s.mu.Lock()
	for i := range s.cards {
		if _, ok := idSet[s.cards[i].ID]; !ok {
			continue
		}
		seen := make(map[string]struct{}, len(s.cards[i].Tags)+len(tags))
		merged := make([]string, 0, len(s.cards[i].Tags)+len(tags))
		for _, t := range append(append([]string(nil), s.cards[i].Tags...), tags...) {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			merged = append(merged, t)
		}
		s.cards[i].Tags = merged
	}
	s.mu.Unlock()

	s.notify()
}

// MergeImport applies the archive-import conflict rule: an imported card
// whose id already exists fully replaces the stored one (last-write-wins),
// everything else is appended.
func (s *ProjectStore) MergeImport(imported []models.Card) (replaced, added int) {
	s.mu.Lock()
	index := make(map[string]int, len(s.cards))
	for i, c := range s.cards {
		index[c.ID] = i
	}
	for _, card := range imported {
		if i, ok := index[card.ID]; ok {
			s.cards[i] = card
			replaced++
			continue
		}
		index[card.ID] = len(s.cards)
		s.cards = append(s.cards, card)
		added++
	}
	s.mu.Unlock()

	s.notify()
	return replaced, added
}

// Selection state.

func (s *ProjectStore) SelectedCardIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.selectedCardIDs...)
}

func (s *ProjectStore) ToggleSelection(id string) {
	s.mu.Lock()
	for i, sel := range s.selectedCardIDs {
		if sel == id {
			s.selectedCardIDs = append(s.selectedCardIDs[:i], s.selectedCardIDs[i+1:]...)
			s.mu.Unlock()
			return
		}
	}
	s.selectedCardIDs = append(s.selectedCardIDs, id)
	s.mu.Unlock()
}

func (s *ProjectStore) SelectAll() {
	s.mu.Lock()
	s.selectedCardIDs = s.selectedCardIDs[:0]
	for _, c := range s.cards {
		s.selectedCardIDs = append(s.selectedCardIDs, c.ID)
	}
	s.mu.Unlock()
}

func (s *ProjectStore) ClearSelection() {
	s.mu.Lock()
	s.selectedCardIDs = nil
	s.mu.Unlock()
}

// AddAnnotation appends a completed stroke to its page.
func (s *ProjectStore) AddAnnotation(page int, ann models.Annotation) {
	s.mu.Lock()
	s.annotations[page] = append(s.annotations[page], ann)
	s.mu.Unlock()
	s.notify()
}

// PageGroup is the derived display grouping: unsorted first, then ascending
// page order.
type PageGroup struct {
	Page  int           `json:"page"` // PageUnsorted for the unsorted bucket
	Label string        `json:"label"`
	Cards []models.Card `json:"cards"`
}

func (s *ProjectStore) Grouped() []PageGroup {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byPage := make(map[int][]models.Card)
	for _, c := range s.cards {
		page := c.PageNumber
		if page < 1 {
			page = models.PageUnsorted
		}
		byPage[page] = append(byPage[page], c)
	}

	pages := make([]int, 0, len(byPage))
	for page := range byPage {
		pages = append(pages, page)
	}
	sort.Ints(pages) // PageUnsorted is 0, so it naturally sorts first

	groups := make([]PageGroup, 0, len(pages))
	for _, page := range pages {
		label := "Unsorted"
		if page != models.PageUnsorted {
			label = "Page " + strconv.Itoa(page)
		}
		groups = append(groups, PageGroup{Page: page, Label: label, Cards: byPage[page]})
	}
	return groups
}

// ExistingContext summarizes the cards already on a page for the model, to
// reduce duplicate generation.
func (s *ProjectStore) ExistingContext(page int) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var lines []string
	for _, c := range s.cards {
		if c.PageNumber != page {
			continue
		}
		switch c.Type {
		case models.CardTypeBasic:
			lines = append(lines, "Q: "+c.Front)
		case models.CardTypeCloze:
			lines = append(lines, "Cloze: "+c.Text)
		}
	}
	return strings.Join(lines, "\n")
}

// Prompts.

func (s *ProjectStore) PromptFor(backend string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.prompts[backend]; ok && p != "" {
		return p
	}
	return s.prompts["default"]
}

func (s *ProjectStore) SetPrompt(backend, template string) {
	s.mu.Lock()
	s.prompts[backend] = template
	s.promptsModified[backend] = true
	s.mu.Unlock()
	s.notify()
}

// SyncDefaultPrompts re-applies changed global defaults to every backend the
// user has not modified in this project.
func (s *ProjectStore) SyncDefaultPrompts(globalDefaults map[string]string) {
	s.mu.Lock()
	for _, backend := range models.Backends {
		if s.promptsModified[backend] {
			continue
		}
		if def := globalDefaults[backend]; def != "" {
			s.prompts[backend] = def
		} else {
			s.prompts[backend] = llm.DefaultPromptTemplate
		}
	}
	s.mu.Unlock()
	s.notify()
}

func copyStringMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyBoolMap(m map[string]bool) map[string]bool {
	out := make(map[string]bool, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
