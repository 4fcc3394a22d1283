// Package sheets pushes a store's dimensional snapshot into its Google
// workbook. The upload is a full refresh: clear the sheet, write everything.
package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// SheetName is the tab every store workbook receives the snapshot on.
const SheetName = "tech_list"

type Uploader struct {
	credentialsFile string
	svc             *sheets.Service
}

func NewUploader(credentialsFile string) *Uploader {
	return &Uploader{credentialsFile: credentialsFile}
}

func (u *Uploader) init(ctx context.Context) error {
	if u.svc != nil {
		return nil
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(u.credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope))
	if err != nil {
		return fmt.Errorf("failed to create sheets service: %w", err)
	}
	u.svc = svc
	return nil
}

// CheckAccess verifies the service account can open the workbook.
func (u *Uploader) CheckAccess(ctx context.Context, spreadsheetID string) error {
	if err := u.init(ctx); err != nil {
		return err
	}
	if _, err := u.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
	}
	return nil
}

// ensureSheet adds the snapshot tab when the workbook does not have it yet.
func (u *Uploader) ensureSheet(ctx context.Context, spreadsheetID string) error {
	ss, err := u.svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to open spreadsheet %s: %w", spreadsheetID, err)
	}
	for _, sheet := range ss.Sheets {
		if sheet.Properties.Title == SheetName {
			return nil
		}
	}

	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{
			{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: SheetName},
				},
			},
		},
	}
	if _, err := u.svc.Spreadsheets.BatchUpdate(spreadsheetID, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to add sheet %s: %w", SheetName, err)
	}
	return nil
}

// Upload replaces the snapshot tab's contents with values. The first row is
// expected to be the header.
func (u *Uploader) Upload(ctx context.Context, spreadsheetID string, values [][]interface{}) error {
	if err := u.init(ctx); err != nil {
		return err
	}
	if err := u.ensureSheet(ctx, spreadsheetID); err != nil {
		return err
	}

	if _, err := u.svc.Spreadsheets.Values.
		Clear(spreadsheetID, SheetName, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to clear sheet %s: %w", SheetName, err)
	}

	rb := &sheets.ValueRange{Values: values}
	if _, err := u.svc.Spreadsheets.Values.
		Update(spreadsheetID, SheetName+"!A1", rb).
		ValueInputOption("RAW").
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to update sheet %s: %w", SheetName, err)
	}
	return nil
}
