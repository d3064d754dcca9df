package passes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"

	"ms-passes/internal/models"
	"ms-passes/internal/passes/layout"
	"ms-passes/internal/passes/template"
)

var ErrNoRenderer = errors.New("sheet renderer not configured")

// prepareSheet generates the missing passes of the event and lays all of them out.
func (s *PassService) prepareSheet(ctx context.Context, eventID int64, policy layout.Policy) (*models.Event, iter.Seq[layout.Page], error) {
	if s.Sheets == nil {
		return nil, nil, ErrNoRenderer
	}

	event, err := s.GetEvent(ctx, eventID)
	if err != nil {
		return nil, nil, err
	}

	engine, err := layout.New(policy, layout.A4, layout.CellFromCM(event.QRWidth, event.QRHeight))
	if err != nil {
		return nil, nil, err
	}

	if _, err := s.GeneratePasses(ctx, eventID); err != nil {
		return nil, nil, err
	}

	passes, err := s.DB.ListPassesByEvent(ctx, eventID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list passes of event %d: %w", eventID, err)
	}
	codes := make([]string, len(passes))
	for i, p := range passes {
		codes[i] = p.Code
	}

	sheet := layout.Sheet{EventName: event.Name, Date: event.Date, Sponsors: event.Sponsors, Codes: codes}
	return event, engine.Pages(sheet), nil
}

// ExportSheet writes the printable pass sheet of the event to w and returns its
// download filename. w receives nothing if rendering fails.
func (s *PassService) ExportSheet(ctx context.Context, eventID int64, policy layout.Policy, w io.Writer) (string, error) {
	event, pages, err := s.prepareSheet(ctx, eventID, policy)
	if err != nil {
		return "", err
	}
	if err := s.Sheets.Write(pages, w); err != nil {
		return "", err
	}
	s.Logger.LogPass("EXPORT", eventID, fmt.Sprintf("%s sheet rendered", policy))
	return template.Filename(event.Name), nil
}

// ExportSheetFile renders the sheet to path, replacing any previous file only once rendering succeeded.
func (s *PassService) ExportSheetFile(ctx context.Context, eventID int64, policy layout.Policy, path string) error {
	_, pages, err := s.prepareSheet(ctx, eventID, policy)
	if err != nil {
		return err
	}
	if err := s.Sheets.WriteFile(pages, path); err != nil {
		return err
	}
	s.Logger.LogPass("EXPORT", eventID, fmt.Sprintf("%s sheet written to %s", policy, path))
	return nil
}
