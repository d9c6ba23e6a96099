package gsheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"bitbucket.org/pushfeedback/feedback_backend/config"
	"bitbucket.org/pushfeedback/feedback_backend/models"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// Service mirrors the tracked-article data into one shared Google
// spreadsheet: one sheet per supplier, one row per article with its stored
// feedback count.
type Service struct {
	api           *sheets.Service
	spreadsheetId string
}

func NewService(ctx context.Context) (*Service, error) {
	spreadsheetId := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"))
	if spreadsheetId == "" {
		return nil, errors.New("GOOGLE_SHEETS_SPREADSHEET_ID is empty")
	}
	credsFile := strings.TrimSpace(os.Getenv("GOOGLE_SHEETS_CREDENTIALS_FILE"))
	if credsFile == "" {
		return nil, errors.New("GOOGLE_SHEETS_CREDENTIALS_FILE is empty")
	}

	api, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, err
	}
	return &Service{api: api, spreadsheetId: spreadsheetId}, nil
}

// RefreshTrackedSheets rebuilds the spreadsheet from scratch: drops every
// sheet but the first, then adds one sheet per supplier that has tracked
// articles.
func (s *Service) RefreshTrackedSheets(ctx context.Context) error {
	spreadsheet, err := s.api.Spreadsheets.Get(s.spreadsheetId).Context(ctx).Do()
	if err != nil {
		return err
	}

	var deletes []*sheets.Request
	for i, sheet := range spreadsheet.Sheets {
		if i == 0 {
			continue
		}
		deletes = append(deletes, &sheets.Request{
			DeleteSheet: &sheets.DeleteSheetRequest{SheetId: sheet.Properties.SheetId},
		})
	}
	if len(deletes) > 0 {
		_, err = s.api.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: deletes,
		}).Context(ctx).Do()
		if err != nil {
			return err
		}
	}

	users, err := models.ListEligibleUsers(ctx)
	if err != nil {
		return err
	}

	logger := config.GetLogger()
	for _, user := range users {
		suppliers, err := models.ListSuppliers(ctx, user.ID)
		if err != nil {
			return err
		}
		for _, supplier := range suppliers {
			articles, err := models.ListTrackedArticles(ctx, supplier.ID)
			if err != nil {
				return err
			}
			if len(articles) == 0 {
				continue
			}
			if err := s.writeSupplierSheet(ctx, supplier, articles); err != nil {
				config.LogError(logger, "gsheets", "RefreshTrackedSheets", "supplier sheet", supplier.ID, err)
			}
		}
	}
	return nil
}

func (s *Service) writeSupplierSheet(ctx context.Context, supplier *models.Supplier, articles []*models.TrackedArticle) error {
	title := fmt.Sprintf("#%d %s", supplier.ID, supplier.Name)

	resp, err := s.api.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{
						Title:          title,
						GridProperties: &sheets.GridProperties{RowCount: 999999, ColumnCount: 4},
					},
				},
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return err
	}

	values := make([][]interface{}, 0, len(articles))
	for _, article := range articles {
		count, err := models.CountFeedbacks(ctx, article.ID)
		if err != nil {
			return err
		}
		if count == 0 {
			values = append(values, []interface{}{article.Article, ""})
		} else {
			values = append(values, []interface{}{article.Article, count})
		}
	}

	_, err = s.api.Spreadsheets.Values.Append(s.spreadsheetId, title+"!A:C", &sheets.ValueRange{
		Values: values,
	}).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return err
	}

	sheetId := resp.Replies[0].AddSheet.Properties.SheetId
	_, err = s.api.Spreadsheets.BatchUpdate(s.spreadsheetId, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
					Dimensions: &sheets.DimensionRange{
						SheetId:    sheetId,
						Dimension:  "COLUMNS",
						StartIndex: 0,
						EndIndex:   2,
					},
				},
			},
		},
	}).Context(ctx).Do()
	if err != nil {
		return err
	}

	config.GetLogger().WithFields(logrus.Fields{
		"module": "gsheets",
		"sheet":  title,
		"rows":   len(values),
	}).Info("supplier sheet refreshed")
	return nil
}
