package boffo

import (
	"context"
	"fmt"
	"log"
	"sync"

	"boffo/internal/credentials"
	"boffo/internal/folio"
	"boffo/internal/sheet"
)

// Host is the environment an operation runs in: where input keys come
// from, where result rows go, and who answers credential prompts.
type Host interface {
	Selection(ctx context.Context) ([]string, error)
	CreateOutputSheet(ctx context.Context, headings []string) (Sheet, error)
	WriteResultRows(ctx context.Context, s Sheet, startRow int, rows [][]string) error
	Notify(message string)
	PromptCredentials(ctx context.Context, current credentials.Credentials, lastErr error) (folio.LoginRequest, error)
}

// Sheet identifies an output sheet created by a Host.
type Sheet struct {
	Handle sheet.Handle
	Name   string
}

// WorkbookHost writes results into an in-memory workbook. It serves both the
// CLI, which saves the workbook to disk, and the HTTP host, which streams it.
type WorkbookHost struct {
	Workbook *sheet.Workbook
	// Cells is the selection used when an operation is given no keys.
	Cells []string
	// Prompter answers credential prompts. When nil the host reports that
	// credentials are needed instead of asking.
	Prompter folio.Prompter
	// OnNotify, when set, also receives every notification as it happens.
	OnNotify func(message string)

	mu    sync.Mutex
	notes []string
}

func NewWorkbookHost(cells []string, prompter folio.Prompter) *WorkbookHost {
	return &WorkbookHost{Workbook: sheet.NewWorkbook(), Cells: cells, Prompter: prompter}
}

func (h *WorkbookHost) Selection(context.Context) ([]string, error) {
	return h.Cells, nil
}

func (h *WorkbookHost) CreateOutputSheet(_ context.Context, headings []string) (Sheet, error) {
	handle, err := h.Workbook.CreateSheet(headings)
	if err != nil {
		return Sheet{}, err
	}
	return Sheet{Handle: handle, Name: h.Workbook.SheetName(handle)}, nil
}

func (h *WorkbookHost) WriteResultRows(_ context.Context, s Sheet, startRow int, rows [][]string) error {
	return h.Workbook.WriteRows(s.Handle, startRow, rows)
}

func (h *WorkbookHost) Notify(message string) {
	h.mu.Lock()
	h.notes = append(h.notes, message)
	h.mu.Unlock()
	log.Printf("boffo: %s", message)
	if h.OnNotify != nil {
		h.OnNotify(message)
	}
}

// Notifications returns every message passed to Notify, in order.
func (h *WorkbookHost) Notifications() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.notes...)
}

func (h *WorkbookHost) PromptCredentials(ctx context.Context, current credentials.Credentials, lastErr error) (folio.LoginRequest, error) {
	if h.Prompter == nil {
		detail := "log in first"
		if lastErr != nil {
			detail = fmt.Sprintf("log in first (%v)", lastErr)
		}
		return folio.LoginRequest{}, &folio.Error{Kind: folio.KindAuth, Op: "session", Detail: detail, Err: folio.ErrNeedCredentials}
	}
	return h.Prompter.PromptCredentials(ctx, current, lastErr)
}
