package archive

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"cardstudio-backend/internal/models"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// renderMarkdown builds the human-readable index: cards grouped by page
// (unsorted first, then ascending), each with its fields, asset references
// and a tag line. Never re-parsed on import.
func renderMarkdown(pdfName, cleanName string, cards []models.Card, paths map[string]cardAssets) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Flashcards: %s\n\n", pdfName)

	groups := make(map[int][]models.Card)
	for _, c := range cards {
		groups[c.PageNumber] = append(groups[c.PageNumber], c)
	}
	pages := make([]int, 0, len(groups))
	for p := range groups {
		pages = append(pages, p)
	}
	sort.Ints(pages)

	for _, page := range pages {
		label := strconv.Itoa(page)
		if page == models.PageUnsorted {
			label = "Unsorted"
		}
		fmt.Fprintf(&b, "## Page %s\n\n", label)

		for _, card := range groups[page] {
			ca := paths[card.ID]

			if card.Type == models.CardTypeCloze {
				b.WriteString("### Cloze Card\n")
				fmt.Fprintf(&b, "**Text**: %s\n", card.Text)
			} else {
				b.WriteString("### Basic Card\n")
				fmt.Fprintf(&b, "**Front**: %s\n", card.Front)
			}
			for _, p := range ca.front {
				fmt.Fprintf(&b, "![Image](%s)\n", p)
			}

			if card.Type == models.CardTypeCloze {
				if card.Back != "" {
					fmt.Fprintf(&b, "**Extra**: %s\n", card.Back)
				}
			} else {
				fmt.Fprintf(&b, "**Back**: %s\n", card.Back)
			}
			for _, p := range ca.back {
				fmt.Fprintf(&b, "![Image](%s)\n", p)
			}

			fmt.Fprintf(&b, "**Tags**: #%s #Page_%s %s\n", cleanName, label, tagLine(card.Tags))
			fmt.Fprintf(&b, "<!-- ID: %s -->\n\n---\n\n", card.ID)
		}
	}

	return b.String()
}

func tagLine(tags []string) string {
	parts := make([]string, 0, len(tags))
	for _, t := range tags {
		parts = append(parts, "#"+whitespaceRun.ReplaceAllString(t, "_"))
	}
	return strings.Join(parts, " ")
}
