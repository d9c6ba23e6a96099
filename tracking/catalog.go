package tracking

import (
	"context"
	"fmt"
	"strings"

	"bitbucket.org/pushfeedback/feedback_backend/models"
	"bitbucket.org/pushfeedback/feedback_backend/portal"
	"github.com/xuri/excelize/v2"
)

// ExportCatalog scans the supplier's full product catalog and renders it
// into a workbook the user can flag rows in and send back through
// AddFromImport. Articles already tracked are marked in the flag column.
func ExportCatalog(ctx context.Context, user *models.User, supplier *models.Supplier) ([]byte, error) {
	if !user.HasSession() {
		return nil, &portal.Error{Kind: portal.ErrorKindNotAuthenticated, Message: "not authorized in the seller portal"}
	}

	client := portal.NewClient(supplier.ExternalId, *user.WBToken)
	cards, err := client.GetCards(ctx, "")
	if err != nil {
		return nil, err
	}

	tracked, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		return nil, err
	}
	trackedByNmId := map[string]bool{}
	for _, article := range tracked {
		trackedByNmId[article.NmId] = true
	}

	headers := []string{
		"Артикул WB", "Артикул продавца", "Бренд", "Предмет", "Цвет", "Размер", "Баркод",
		"Заполните да, если нужно отслеживать товар",
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := writeHeader(f, fmt.Sprintf("Список товаров %s", supplier.Name), headers); err != nil {
		return nil, err
	}

	for i, card := range cards {
		rowNo := dataStartRow + i
		nmId := card.NmID.String()

		cell := fmt.Sprintf("A%d", rowNo)
		f.SetCellValue(sheetName, cell, nmId)
		f.SetCellHyperLink(sheetName, cell, fmt.Sprintf(catalogLinkFormat, nmId), "External")
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNo), card.VendorCode)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNo), card.Brand)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", rowNo), card.Subject)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", rowNo), joinOrDash(card.Colors))
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", rowNo), firstSize(card.Sizes))
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", rowNo), firstBarcode(card.Sizes))
		if trackedByNmId[nmId] {
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNo), "Уже отслеживается")
		}
	}

	scaleSheet(f)
	f.SetColWidth(sheetName, "A", "A", 15)
	f.SetColWidth(sheetName, "G", "G", 15)
	f.SetColWidth(sheetName, "H", "H", 28)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func joinOrDash(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}

func firstSize(sizes []portal.CardSize) string {
	if len(sizes) == 0 || sizes[0].WbSize == "" {
		return "-"
	}
	return sizes[0].WbSize
}

func firstBarcode(sizes []portal.CardSize) string {
	if len(sizes) == 0 || len(sizes[0].Skus) == 0 {
		return ""
	}
	return sizes[0].Skus[0]
}
