// Package ingest turns local documents into embedded chunks in a vector
// store. It extracts text from PDF, Word, Excel, and plain-text files,
// splits it, and writes embeddings through the databases layer.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// Document is extracted file content ready for chunking.
type Document struct {
	Path     string
	Title    string
	Text     string
	Metadata map[string]string
}

// maxCellsPerSheet caps spreadsheet extraction to avoid huge outputs.
const maxCellsPerSheet = 1000

// ExtractFile extracts readable text from a file based on its extension.
// Unknown extensions are treated as plain text.
func ExtractFile(ctx context.Context, path string) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDF(ctx, path, info.Size())
	case ".docx":
		return extractDocx(path)
	case ".xlsx":
		return extractXlsx(ctx, path)
	default:
		return extractText(path)
	}
}

func extractPDF(ctx context.Context, path string, size int64) (*Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader, err := pdf.NewReader(file, size)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}

	return &Document{
		Path:  path,
		Title: filepath.Base(path),
		Text:  strings.Join(parts, "\n\n"),
		Metadata: map[string]string{
			"type":  "pdf",
			"pages": fmt.Sprintf("%d", totalPages),
		},
	}, nil
}

func extractDocx(path string) (*Document, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Word document: %w", err)
	}
	defer func() { _ = doc.Close() }()

	content := doc.Editable().GetContent()

	return &Document{
		Path:     path,
		Title:    filepath.Base(path),
		Text:     stripXMLTags(content),
		Metadata: map[string]string{"type": "docx"},
	}, nil
}

// stripXMLTags removes the WordprocessingML markup GetContent leaves in.
func stripXMLTags(content string) string {
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func extractXlsx(ctx context.Context, path string) (*Document, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	var parts []string
	sheets := f.GetSheetList()

	for _, sheetName := range sheets {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}

		var sheetText strings.Builder
		sheetText.WriteString("Sheet: " + sheetName + "\n")

		cellCount := 0
		for _, row := range rows {
			if cellCount >= maxCellsPerSheet {
				break
			}
			var cells []string
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					cells = append(cells, text)
					cellCount++
				}
			}
			if len(cells) > 0 {
				sheetText.WriteString(strings.Join(cells, " | ") + "\n")
			}
		}
		parts = append(parts, sheetText.String())
	}

	return &Document{
		Path:  path,
		Title: filepath.Base(path),
		Text:  strings.Join(parts, "\n"),
		Metadata: map[string]string{
			"type":   "xlsx",
			"sheets": fmt.Sprintf("%d", len(sheets)),
		},
	}, nil
}

func extractText(path string) (*Document, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	return &Document{
		Path:     path,
		Title:    filepath.Base(path),
		Text:     string(content),
		Metadata: map[string]string{"type": "text"},
	}, nil
}
