package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"boffo/internal/boffo"
	"boffo/internal/sheet"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// LookupHandler runs lookups for HTTP clients. Every request gets its own
// workbook; the host cannot prompt, so a missing session is reported as
// NEED_CREDENTIALS.
type LookupHandler struct {
	Service  *boffo.Service
	MaxBytes int64
}

func NewLookupHandler(svc *boffo.Service) *LookupHandler {
	return &LookupHandler{
		Service:  svc,
		MaxBytes: 20 << 20, // 20 MB
	}
}

type barcodeRequest struct {
	Barcodes []string `json:"barcodes"`
}

type rangeRequest struct {
	First    string `json:"first"`
	Last     string `json:"last"`
	Location string `json:"location"`
}

// LookupBarcodes accepts either {"barcodes": [...]} or a multipart upload of
// an .xlsx file in the "file" field whose first sheet lists the barcodes.
func (h *LookupHandler) LookupBarcodes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.MaxBytes)

	barcodes, err := h.readBarcodes(r)
	if err != nil {
		sendErrorResponse(w, err.Error(), "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	host := boffo.NewWorkbookHost(nil, nil)
	result, err := h.Service.LookupByBarcodes(r.Context(), host, barcodes)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, host, result)
}

func (h *LookupHandler) LookupRange(w http.ResponseWriter, r *http.Request) {
	var in rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		sendErrorResponse(w, "invalid JSON", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}
	if in.Location == "" {
		in.Location = "Any"
	}

	host := boffo.NewWorkbookHost(nil, nil)
	result, err := h.Service.LookupByCallNumberRange(r.Context(), host, in.First, in.Last, in.Location)
	if err != nil {
		WriteError(w, err)
		return
	}
	respond(w, r, host, result)
}

func (h *LookupHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Service.ListLocations(r.Context(), boffo.NewWorkbookHost(nil, nil))
	if err != nil {
		WriteError(w, err)
		return
	}
	writeData(w, locs, nil)
}

// Dispatch runs the command named in the URL with the JSON body as its
// arguments. An empty body means no arguments.
func (h *LookupHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var args boffo.Args
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil && !errors.Is(err, io.EOF) {
		sendErrorResponse(w, "invalid JSON", "INVALID_REQUEST", http.StatusBadRequest)
		return
	}

	host := boffo.NewWorkbookHost(nil, nil)
	out, err := h.Service.Dispatch(r.Context(), host, chi.URLParam(r, "name"), args)
	if err != nil {
		WriteError(w, err)
		return
	}
	writeData(w, out, map[string]any{"notifications": host.Notifications()})
}

func (h *LookupHandler) readBarcodes(r *http.Request) ([]string, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), "multipart/form-data") {
		var in barcodeRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return nil, errors.New("invalid JSON")
		}
		if in.Barcodes == nil {
			in.Barcodes = []string{}
		}
		return in.Barcodes, nil
	}

	if err := r.ParseMultipartForm(h.MaxBytes); err != nil {
		return nil, fmt.Errorf("invalid multipart form: %w", err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("file is required: %w", err)
	}
	defer file.Close()

	if !isXLSX(header) {
		return nil, errors.New("only .xlsx files are accepted")
	}
	keys, err := sheet.ReadKeys(file)
	if err != nil {
		return nil, err
	}
	if keys == nil {
		keys = []string{}
	}
	return keys, nil
}

// respond sends the result as JSON, or as the workbook itself when the
// client asks for ?format=xlsx.
func respond(w http.ResponseWriter, r *http.Request, host *boffo.WorkbookHost, result *boffo.OperationResult) {
	if r.URL.Query().Get("format") == "xlsx" {
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="boffo-results.xlsx"`)
		if err := host.Workbook.Write(w); err != nil {
			log.Printf("handlers: failed to stream workbook: %v", err)
		}
		return
	}
	writeData(w, result, map[string]any{"notifications": host.Notifications()})
}

func isXLSX(h *multipart.FileHeader) bool {
	return strings.HasSuffix(strings.ToLower(h.Filename), ".xlsx")
}
