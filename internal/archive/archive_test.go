package archive

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"cardstudio-backend/internal/models"
)

var pngDot = base64.StdEncoding.EncodeToString([]byte{0x89, 'P', 'N', 'G'})

func exportMeta() models.ProjectMeta {
	return models.ProjectMeta{
		PDFName:   "Biology Notes.pdf",
		Timestamp: 1756500000000,
		Cards: []models.Card{
			{ID: "u1", Type: models.CardTypeBasic, Front: "loose", Back: "end", PageNumber: models.PageUnsorted},
			{
				ID: "c1", Type: models.CardTypeBasic,
				Front: "What is ATP?", Back: "Energy currency",
				Tags:        []string{"energy", "chapter one"},
				FrontImages: []string{"data:image/png;base64," + pngDot},
				PageNumber:  3,
			},
			{ID: "c2", Type: models.CardTypeCloze, Text: "{{c1::Mitochondria}} make ATP", PageNumber: 3},
		},
	}
}

func readEntry(t *testing.T, zr *zip.Reader, name string) []byte {
	t.Helper()
	for _, f := range zr.File {
		if f.Name == name {
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			data, err := io.ReadAll(rc)
			if err != nil {
				t.Fatal(err)
			}
			return data
		}
	}
	t.Fatalf("archive has no entry %q", name)
	return nil
}

func TestCleanName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Biology Notes.pdf", "Biology_Notes"},
		{"lecture.PDF", "lecture"},
		{"a/b:c.pdf", "a_b_c"},
		{"already-safe_1", "already-safe_1"},
		{".pdf", "_pdf"},
		{"", "project"},
	}
	for _, tc := range tests {
		if got := CleanName(tc.in); got != tc.want {
			t.Errorf("CleanName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExport_ArchiveLayout(t *testing.T) {
	data, filename, err := Export(exportMeta())
	if err != nil {
		t.Fatal(err)
	}
	if filename != "Biology_Notes_Export.zip" {
		t.Errorf("filename = %q", filename)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}

	asset := readEntry(t, zr, "assets/img_c1_f_0.png")
	if !bytes.Equal(asset, []byte{0x89, 'P', 'N', 'G'}) {
		t.Errorf("asset bytes = %v", asset)
	}
	readEntry(t, zr, "flashcards.md")
	readEntry(t, zr, "project.json")
}

func TestExport_Markdown(t *testing.T) {
	data, _, err := Export(exportMeta())
	if err != nil {
		t.Fatal(err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	md := string(readEntry(t, zr, "flashcards.md"))

	if !strings.HasPrefix(md, "# Flashcards: Biology Notes.pdf\n\n") {
		t.Errorf("missing header, got %q", md[:40])
	}

	// Unsorted group first, then ascending pages.
	unsorted := strings.Index(md, "## Page Unsorted")
	page3 := strings.Index(md, "## Page 3")
	if unsorted < 0 || page3 < 0 || unsorted > page3 {
		t.Errorf("group order wrong: unsorted=%d page3=%d", unsorted, page3)
	}

	for _, want := range []string{
		"### Basic Card\n**Front**: What is ATP?\n",
		"![Image](assets/img_c1_f_0.png)\n",
		"**Tags**: #Biology_Notes #Page_3 #energy #chapter_one\n",
		"### Cloze Card\n**Text**: {{c1::Mitochondria}} make ATP\n",
		"**Tags**: #Biology_Notes #Page_Unsorted \n",
		"<!-- ID: c2 -->\n\n---\n\n",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}

	// Cloze cards with an empty Back must not render an Extra line.
	if strings.Contains(md, "**Extra**") {
		t.Error("empty cloze extra rendered")
	}
}

func TestExport_SkipsUndecodableImage(t *testing.T) {
	meta := exportMeta()
	meta.Cards[1].FrontImages = []string{"not base64!!!"}

	data, _, err := Export(meta)
	if err != nil {
		t.Fatal(err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	for _, f := range zr.File {
		if strings.HasPrefix(f.Name, "assets/") {
			t.Errorf("unexpected asset %q", f.Name)
		}
	}
	md := string(readEntry(t, zr, "flashcards.md"))
	if strings.Contains(md, "![Image]") {
		t.Error("markdown references a skipped asset")
	}
}

func TestExportImport_RoundTrip(t *testing.T) {
	meta := exportMeta()
	data, _, err := Export(meta)
	if err != nil {
		t.Fatal(err)
	}

	state, err := Import(data)
	if err != nil {
		t.Fatal(err)
	}

	// The restore point is the snapshot verbatim, images still embedded.
	// MarshalIndent reformats the embedded payload, so compare compacted.
	var compact bytes.Buffer
	if err := json.Compact(&compact, state); err != nil {
		t.Fatal(err)
	}
	want, _ := json.Marshal(meta)
	if !bytes.Equal(compact.Bytes(), want) {
		t.Errorf("state mismatch:\n got %s\nwant %s", compact.Bytes(), want)
	}

	var restored models.ProjectMeta
	if err := json.Unmarshal(state, &restored); err != nil {
		t.Fatal(err)
	}
	if len(restored.Cards) != 3 || restored.Cards[1].FrontImages[0] != "data:image/png;base64,"+pngDot {
		t.Error("embedded image did not survive the round trip")
	}
}

func TestImport_NoRestorePoint(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("flashcards.md")
	w.Write([]byte("# Flashcards: x\n"))
	zw.Close()

	if _, err := Import(buf.Bytes()); !errors.Is(err, ErrNoRestorePoint) {
		t.Errorf("err = %v, want ErrNoRestorePoint", err)
	}
}

func TestImport_NotAZip(t *testing.T) {
	if _, err := Import([]byte("plainly not a zip")); err == nil {
		t.Error("expected error for non-zip input")
	}
}
