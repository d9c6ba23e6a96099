package tracking

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	config.SetDB(db)
	models.MigrateTable()
	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
		config.SetDB(nil)
	})
}

func seedTracked(t *testing.T, ctx context.Context, nmIds ...string) (*models.User, *models.Supplier) {
	t.Helper()
	user, err := models.CreateUser(ctx, &models.NewUser{ChatId: 4001})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	supplier, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{ExternalId: "sup-1", Name: "Shop"})
	if err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	for _, nmId := range nmIds {
		if _, err := models.EnsureTrackedArticle(ctx, supplier.ID, &models.NewTrackedArticle{
			NmId: nmId, Article: "SKU-" + nmId,
		}); err != nil {
			t.Fatalf("EnsureTrackedArticle: %v", err)
		}
	}
	return user, supplier
}

// catalogWorkbook builds a workbook in the catalog-export layout: data from
// row 3, catalog id in column A, track flag in column H.
func catalogWorkbook(t *testing.T, rows [][2]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	f.SetCellValue(sheetName, "A1", "Список товаров")
	for i, row := range rows {
		rowNo := dataStartRow + i
		f.SetCellValue(sheetName, fmt.Sprintf("A%d", rowNo), row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", rowNo), "SKU-"+row[0])
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", rowNo), "Acme")
		if row[1] != "" {
			f.SetCellValue(sheetName, fmt.Sprintf("H%d", rowNo), row[1])
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	return buf.Bytes()
}

func TestAddFromImportCreatesOnlyFlaggedRows(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, supplier := seedTracked(t, ctx)

	file := catalogWorkbook(t, [][2]string{
		{"100", "да"},
		{"200", ""},
		{"300", "Да"},
	})

	added, err := AddFromImport(ctx, supplier, file)
	if err != nil {
		t.Fatalf("AddFromImport: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("expected two flagged rows imported, got %d", len(added))
	}

	articles, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("ListTrackedArticles: %v", err)
	}
	got := map[string]bool{}
	for _, a := range articles {
		got[a.NmId] = true
	}
	if !got["100"] || !got["300"] || got["200"] {
		t.Fatalf("unexpected tracked set %v", got)
	}
}

func TestAddFromImportIsIdempotent(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, supplier := seedTracked(t, ctx, "100")

	file := catalogWorkbook(t, [][2]string{{"100", "да"}})
	if _, err := AddFromImport(ctx, supplier, file); err != nil {
		t.Fatalf("AddFromImport: %v", err)
	}

	articles, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("ListTrackedArticles: %v", err)
	}
	if len(articles) != 1 {
		t.Fatalf("expected no duplicate article, got %d", len(articles))
	}
}

func TestAddFromImportRejectsNonExcelFile(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	_, supplier := seedTracked(t, ctx)

	_, err := AddFromImport(ctx, supplier, []byte("definitely not a workbook"))
	if !errors.Is(err, ErrNotExcelFile) {
		t.Fatalf("expected ErrNotExcelFile, got %v", err)
	}
}

func TestExportTrackedRoundTripRemove(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, supplier := seedTracked(t, ctx, "100", "200")

	exported, err := ExportTracked(ctx, user, true)
	if err != nil {
		t.Fatalf("ExportTracked: %v", err)
	}

	// The user flags every exported row for deletion and sends the file back.
	f, err := excelize.OpenReader(bytes.NewReader(exported))
	if err != nil {
		t.Fatalf("reopen export: %v", err)
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != dataStartRow-1+2 {
		t.Fatalf("expected two data rows in the export, got %d total", len(rows))
	}
	for i := dataStartRow; i <= len(rows); i++ {
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", i), "да")
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("rewrite export: %v", err)
	}
	f.Close()

	removed, err := RemoveFromImport(ctx, user, buf.Bytes())
	if err != nil {
		t.Fatalf("RemoveFromImport: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("expected both articles removed, got %d", len(removed))
	}

	articles, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("ListTrackedArticles: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected empty tracked set, got %+v", articles)
	}
}

func TestRemoveFromImportSkipsUnknownArticles(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, supplier := seedTracked(t, ctx, "100")

	f := excelize.NewFile()
	f.SetCellValue(sheetName, "A3", "100")
	f.SetCellValue(sheetName, "C3", "да")
	f.SetCellValue(sheetName, "A4", "42424242")
	f.SetCellValue(sheetName, "C4", "да")
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("build workbook: %v", err)
	}
	f.Close()

	removed, err := RemoveFromImport(ctx, user, buf.Bytes())
	if err != nil {
		t.Fatalf("RemoveFromImport: %v", err)
	}
	if len(removed) != 1 || removed[0].NmId != "100" {
		t.Fatalf("expected only the known article removed, got %+v", removed)
	}

	articles, err := models.ListTrackedArticles(ctx, supplier.ID)
	if err != nil {
		t.Fatalf("ListTrackedArticles: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected tracked set emptied, got %+v", articles)
	}
}

func TestExportTrackedRequiresSuppliersAndArticles(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()

	user, err := models.CreateUser(ctx, &models.NewUser{ChatId: 4002})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := ExportTracked(ctx, user, false); !errors.Is(err, ErrNoSuppliers) {
		t.Fatalf("expected ErrNoSuppliers, got %v", err)
	}

	if _, err := models.EnsureSupplier(ctx, user.ID, &models.NewSupplier{ExternalId: "sup-2"}); err != nil {
		t.Fatalf("EnsureSupplier: %v", err)
	}
	if _, err := ExportTracked(ctx, user, false); !errors.Is(err, ErrNoTrackedArticles) {
		t.Fatalf("expected ErrNoTrackedArticles, got %v", err)
	}
}

func TestExportTrackedLayout(t *testing.T) {
	newTestDB(t)
	ctx := context.Background()
	user, _ := seedTracked(t, ctx, "100")

	exported, err := ExportTracked(ctx, user, false)
	if err != nil {
		t.Fatalf("ExportTracked: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(exported))
	if err != nil {
		t.Fatalf("reopen export: %v", err)
	}
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	if err != nil || title != "Список отслеживаемых артикулов" {
		t.Fatalf("unexpected title %q (%v)", title, err)
	}
	nmId, err := f.GetCellValue(sheetName, "A3")
	if err != nil || nmId != "100" {
		t.Fatalf("unexpected catalog id cell %q (%v)", nmId, err)
	}
	hasLink, link, err := f.GetCellHyperLink(sheetName, "A3")
	if err != nil || !hasLink {
		t.Fatalf("expected hyperlink on the catalog id cell (%v)", err)
	}
	if link != "https://www.wildberries.ru/catalog/100/detail.aspx?targetUrl=SP" {
		t.Fatalf("unexpected hyperlink %q", link)
	}
}
