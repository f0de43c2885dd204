package localpdf

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/paperstand/internal/core/domain"
)

// Parser implements the parse contract locally: per-page text via the
// pdf library and page rasterization via poppler's pdftoppm. A richer
// remote layout service could replace it behind the same port; this
// implementation only emits TEXT and HEADING elements.
type Parser struct {
	pdfDir     string
	imagesRoot string
	dpi        int
}

func New(pdfDir, imagesRoot string, dpi int) *Parser {
	if dpi <= 0 {
		dpi = 150
	}
	return &Parser{
		pdfDir:     pdfDir,
		imagesRoot: imagesRoot,
		dpi:        dpi,
	}
}

func (p *Parser) Parse(ctx context.Context, paperID string) (*domain.ParseResult, error) {
	pdfPath := filepath.Join(p.pdfDir, paperID+".pdf")
	if _, err := os.Stat(pdfPath); err != nil {
		return nil, fmt.Errorf("stat pdf: %w", err)
	}

	elements, pageCount, err := extractElements(pdfPath)
	if err != nil {
		return nil, fmt.Errorf("extract text: %w", err)
	}

	imageDir := filepath.Join(p.imagesRoot, paperID)
	if err := p.renderPages(ctx, pdfPath, imageDir); err != nil {
		return nil, fmt.Errorf("render pages: %w", err)
	}

	return &domain.ParseResult{
		Elements:  elements,
		ImageDir:  imageDir,
		PageCount: pageCount,
	}, nil
}

func extractElements(pdfPath string) ([]domain.ParsedElement, int, error) {
	f, reader, err := pdf.Open(pdfPath)
	if err != nil {
		return nil, 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	pageCount := reader.NumPage()
	var elements []domain.ParsedElement

	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			// A single unreadable page should not sink the whole paper.
			continue
		}

		for _, paragraph := range splitParagraphs(text) {
			elements = append(elements, domain.ParsedElement{
				PageNumber:  pageNum,
				Text:        paragraph,
				ElementType: classifyParagraph(paragraph),
			})
		}
	}
	return elements, pageCount, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, block := range strings.Split(text, "\n\n") {
		block = strings.TrimSpace(block)
		if block != "" {
			out = append(out, block)
		}
	}
	return out
}

var sectionHeadingRe = regexp.MustCompile(`^\d+(\.\d+)*\.?\s+\S`)

func classifyParagraph(paragraph string) domain.ElementType {
	if len(paragraph) <= 80 && len(strings.Fields(paragraph)) <= 8 && sectionHeadingRe.MatchString(paragraph) {
		return domain.ElementHeading
	}
	return domain.ElementText
}

// renderPages rasterizes every page to PNG under imageDir, normalizing
// pdftoppm's output names to the page_%03d.png convention.
func (p *Parser) renderPages(ctx context.Context, pdfPath, imageDir string) error {
	if err := os.MkdirAll(imageDir, 0o755); err != nil {
		return fmt.Errorf("create image dir: %w", err)
	}

	prefix := filepath.Join(imageDir, "raw")
	cmd := exec.CommandContext(ctx, "pdftoppm", "-png", "-r", strconv.Itoa(p.dpi), pdfPath, prefix)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("pdftoppm: %w: %s", err, strings.TrimSpace(string(output)))
	}

	return normalizeRenderedNames(imageDir)
}

var renderedNameRe = regexp.MustCompile(`^raw-0*(\d+)\.png$`)

func normalizeRenderedNames(imageDir string) error {
	entries, err := os.ReadDir(imageDir)
	if err != nil {
		return fmt.Errorf("read image dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	for _, name := range names {
		match := renderedNameRe.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		pageNum, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		target := fmt.Sprintf("page_%03d.png", pageNum)
		if err := os.Rename(filepath.Join(imageDir, name), filepath.Join(imageDir, target)); err != nil {
			return fmt.Errorf("rename rendered page: %w", err)
		}
	}
	return nil
}
