package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/utils"
	"github.com/xuri/excelize/v2"
)

// Workbook layout shared by all documents: merged title in row 1, column
// headers in row 2, data from row 3.
const (
	sheetName    = "Sheet1"
	dataStartRow = 3

	headerFillColor = "B1A0C7"

	catalogLinkFormat = "https://www.wildberries.ru/catalog/%s/detail.aspx?targetUrl=SP"
)

var (
	ErrNoSuppliers       = errors.New("no seller accounts added")
	ErrNoTrackedArticles = errors.New("no tracked articles")
	ErrNotExcelFile      = errors.New("this does not look like an Excel file")
)

// isFlagged reports whether a cell carries the truthy marker.
func isFlagged(value string) bool {
	v := strings.TrimSpace(strings.ToLower(value))
	return v == "да" || v == "yes"
}

// AddFromImport creates tracked articles under the supplier from every
// catalog-export row whose track column (H) is flagged. Returns the newly
// created articles; rows already tracked are returned as their existing
// records, never duplicated.
func AddFromImport(ctx context.Context, supplier *models.Supplier, fileBytes []byte) ([]*models.TrackedArticle, error) {
	rows, err := readRows(fileBytes)
	if err != nil {
		return nil, err
	}

	added := []*models.TrackedArticle{}
	for i := dataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if cellAt(row, 7) == "" || !isFlagged(cellAt(row, 7)) {
			continue
		}
		nmId := cellAt(row, 0)
		if nmId == "" {
			continue
		}
		article, err := models.EnsureTrackedArticle(ctx, supplier.ID, &models.NewTrackedArticle{
			NmId:    nmId,
			Article: cellAt(row, 1),
			Brand:   cellAt(row, 2),
		})
		if err != nil {
			return nil, err
		}
		added = append(added, article)
	}
	return added, nil
}

// RemoveFromImport deletes the tracked articles flagged in a tracked-list
// export (delete column C). Rows whose catalog id matches nothing under the
// user's suppliers are skipped silently.
func RemoveFromImport(ctx context.Context, user *models.User, fileBytes []byte) ([]*models.TrackedArticle, error) {
	rows, err := readRows(fileBytes)
	if err != nil {
		return nil, err
	}

	removed := []*models.TrackedArticle{}
	for i := dataStartRow - 1; i < len(rows); i++ {
		row := rows[i]
		if !isFlagged(cellAt(row, 2)) {
			continue
		}
		nmId := cellAt(row, 0)
		if nmId == "" {
			continue
		}
		article, err := models.FindTrackedArticleForUser(ctx, user.ID, nmId)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				continue
			}
			return nil, err
		}
		if err := models.DeleteTrackedArticle(ctx, article.ID); err != nil {
			return nil, err
		}
		removed = append(removed, article)
	}
	return removed, nil
}

// ExportTracked renders the user's tracked articles into a workbook, one row
// per article with the catalog id as a hyperlink. With markForDeletion a
// third column is added for the removal flag.
func ExportTracked(ctx context.Context, user *models.User, markForDeletion bool) ([]byte, error) {
	suppliers, err := models.ListSuppliers(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(suppliers) == 0 {
		return nil, ErrNoSuppliers
	}

	articles, err := models.ListTrackedArticlesForUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	if len(articles) == 0 {
		return nil, ErrNoTrackedArticles
	}

	headers := []string{"Артикул WB", "Артикул продавца"}
	if markForDeletion {
		headers = append(headers, "Заполните да, если товар НЕ нужно отслеживать")
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeHeader(f, "Список отслеживаемых артикулов", headers); err != nil {
		return nil, err
	}

	for i, article := range articles {
		rowNo := dataStartRow + i
		cell := fmt.Sprintf("A%d", rowNo)
		f.SetCellValue(sheetName, cell, article.NmId)
		f.SetCellHyperLink(sheetName, cell, fmt.Sprintf(catalogLinkFormat, article.NmId), "External")
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNo), article.Article)
	}

	scaleSheet(f)
	f.SetColWidth(sheetName, "A", "A", 15)
	if markForDeletion {
		f.SetColWidth(sheetName, "C", "C", 28)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func readRows(fileBytes []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(fileBytes))
	if err != nil {
		return nil, ErrNotExcelFile
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, ErrNotExcelFile
	}
	return rows, nil
}

func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// writeHeader fills the merged title row and the styled header row.
func writeHeader(f *excelize.File, title string, headers []string) error {
	f.SetCellValue(sheetName, "A1", title)
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 2)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, header)
	}

	lastCol, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return err
	}
	if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
		return err
	}

	styleID, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{headerFillColor}, Pattern: 1},
		Font:      &excelize.Font{Bold: true, Size: 12},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		Border: []excelize.Border{
			{Type: "left", Style: 2, Color: "000000"},
			{Type: "right", Style: 2, Color: "000000"},
			{Type: "top", Style: 2, Color: "000000"},
			{Type: "bottom", Style: 2, Color: "000000"},
		},
	})
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheetName, "A1", lastCol+"2", styleID)
}

// scaleSheet widens every column to its longest content plus padding.
func scaleSheet(f *excelize.File) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return
	}
	widths := map[int]float64{}
	for _, row := range rows {
		for col, value := range row {
			if value == "" {
				continue
			}
			w := float64(len([]rune(value)) + 10)
			if w > widths[col] {
				widths[col] = w
			}
		}
	}
	for col, w := range widths {
		name, err := excelize.ColumnNumberToName(col + 1)
		if err != nil {
			continue
		}
		f.SetColWidth(sheetName, name, name, w)
	}
}
