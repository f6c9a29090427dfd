package services

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf/v2"
)

type PDFService struct {
	now func() time.Time
}

func NewPDFService() *PDFService {
	return &PDFService{now: time.Now}
}

// NotesPDF renders a learner's notes for a course, one section per lesson
// in course order.
func (s *PDFService) NotesPDF(export NotesExport, outPath string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure pdf directory: %w", err)
	}

	title := export.CourseTitle
	if strings.TrimSpace(title) == "" {
		title = "Course notes"
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(title, true)
	pdf.SetAuthor("hiigsitech", false)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, tr(title))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 6, fmt.Sprintf("Progress: %d%%", export.Progress))
	pdf.Ln(6)
	pdf.Cell(0, 6, fmt.Sprintf("Exported: %s", s.now().Format("02 Jan 2006 15:04")))
	pdf.Ln(12)

	module := ""
	for _, l := range export.Lessons {
		if l.Module != module {
			module = l.Module
			pdf.SetFont("Helvetica", "B", 15)
			pdf.Cell(0, 9, tr(module))
			pdf.Ln(11)
		}
		heading := l.Title
		if l.Completed {
			heading += " (completed)"
		}
		s.writeSection(pdf, tr, heading, l.Notes)
		pdf.Ln(4)
	}

	if err := pdf.OutputFileAndClose(outPath); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

func (s *PDFService) writeSection(pdf *gofpdf.Fpdf, tr func(string) string, title, content string) {
	pdf.SetFont("Helvetica", "B", 13)
	pdf.Cell(0, 8, tr(title))
	pdf.Ln(9)

	pdf.SetFont("Helvetica", "", 11)

	content = strings.TrimSpace(content)
	if content == "" {
		pdf.SetFont("Helvetica", "I", 11)
		pdf.MultiCell(0, 6, "No notes", "", "L", false)
		return
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			pdf.Ln(3)
			continue
		}
		pdf.MultiCell(0, 6, tr(line), "", "L", false)
	}
}
