package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/voyage-admin-api/internal/models"
	appErrors "github.com/noah-isme/voyage-admin-api/pkg/errors"
	"github.com/noah-isme/voyage-admin-api/pkg/export"
)

// Export formats.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

type calendarSource interface {
	ListCalendar(ctx context.Context, query CalendarQuery) (*models.CalendarView, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	MaxWindow time.Duration
	Location  *time.Location
}

// ExportRequest selects the calendar window to export.
type ExportRequest struct {
	ResourceID string
	Start      *time.Time
	End        *time.Time
	Format     string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ExportService renders calendar windows for the back office.
type ExportService struct {
	calendar calendarSource
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	cfg      ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(calendar calendarSource, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxWindow <= 0 {
		cfg.MaxWindow = 93 * 24 * time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{calendar: calendar, csv: csv, pdf: pdf, logger: logger, cfg: cfg}
}

// Export renders bookings and blocked slots in the window as CSV or PDF.
func (s *ExportService) Export(ctx context.Context, req ExportRequest) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(req.Format))
	if format == "" {
		format = ExportFormatCSV
	}
	if format != ExportFormatCSV && format != ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	view, err := s.calendar.ListCalendar(ctx, CalendarQuery{ResourceID: req.ResourceID, Start: req.Start, End: req.End})
	if err != nil {
		return nil, err
	}
	if view.Window.Duration() > s.cfg.MaxWindow {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("export window may not exceed %s", s.cfg.MaxWindow))
	}

	dataset := s.dataset(view)
	base := fmt.Sprintf("calendar-%s-%s", view.ResourceID, view.Window.Start.In(s.cfg.Location).Format("20060102"))

	var file *ExportFile
	switch format {
	case ExportFormatPDF:
		data, err := s.pdf.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		file = &ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		file = &ExportFile{Filename: base + ".csv", ContentType: "text/csv", Data: data}
	}
	s.logger.Info("calendar exported",
		zap.String("resource_id", view.ResourceID),
		zap.String("format", format),
		zap.Int("bookings", len(view.Bookings)),
		zap.Int("blocked_slots", len(view.BlockedSlots)),
	)
	return file, nil
}

func (s *ExportService) dataset(view *models.CalendarView) export.Dataset {
	const layout = "2006-01-02 15:04"
	loc := s.cfg.Location
	data := export.Dataset{
		Title:    "Calendar " + view.ResourceID,
		Subtitle: fmt.Sprintf("%s to %s (%s)", view.Window.Start.In(loc).Format(layout), view.Window.End.In(loc).Format(layout), loc),
		Headers:  []string{"Type", "ID", "Start", "End", "Status", "Client", "Kind", "Reason"},
	}

	entries := make([]models.ConflictRecord, 0, len(view.Bookings)+len(view.BlockedSlots))
	clients := make(map[string]string, len(view.Bookings))
	kinds := make(map[string]string, len(view.Bookings))
	for _, b := range view.Bookings {
		entries = append(entries, models.BookingConflict(b))
		if b.ClientID != nil {
			clients[b.ID] = *b.ClientID
		}
		kinds[b.ID] = b.Kind
	}
	for _, slot := range view.BlockedSlots {
		entries = append(entries, models.BlockedSlotConflict(slot))
	}
	models.SortConflicts(entries)

	for _, e := range entries {
		status := string(e.Status)
		if e.Type == models.ConflictBlockedSlot {
			status = "blocked"
			if e.AllDay {
				status = "blocked (all day)"
			}
		}
		data.Rows = append(data.Rows, []string{
			string(e.Type),
			e.ID,
			e.Start.In(loc).Format(layout),
			e.End.In(loc).Format(layout),
			status,
			clients[e.ID],
			kinds[e.ID],
			e.Reason,
		})
	}
	return data
}
