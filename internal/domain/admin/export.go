package admin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mwork/admin-console/internal/domain/audit"
	"github.com/mwork/admin-console/internal/middleware"
	"github.com/mwork/admin-console/internal/pkg/ids"
	"github.com/mwork/admin-console/internal/pkg/logger"
	"github.com/mwork/admin-console/internal/pkg/response"
)

// maxExportEntries caps a single export
const maxExportEntries = 50000

// ExportAudit handles GET /admin/audit/export.
// With export storage configured the file is uploaded and a signed URL returned,
// otherwise it is streamed as an attachment.
func (h *Handler) ExportAudit(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	log := logger.FromContext(r.Context())

	entries, err := h.trail.ExportAll(r.Context(), filter)
	if err != nil {
		log.Error().Err(err).Msg("Failed to export audit trail")
		response.InternalError(w)
		return
	}
	if len(entries) > maxExportEntries {
		response.Unprocessable(w, "EXPORT_TOO_LARGE", fmt.Sprintf("%s: narrow the date range (max %d)", ErrExportTooLarge, maxExportEntries))
		return
	}

	body, err := json.Marshal(entries)
	if err != nil {
		response.InternalError(w)
		return
	}

	now := h.now().UTC()
	key := fmt.Sprintf("audit-exports/%s/%s.json", now.Format("2006/01/02"), strings.ToLower(ids.NewAt(now)))

	// Exports are themselves audited
	h.trail.Append(r.Context(), audit.NewEntry{
		Action:     "audit.export",
		TargetType: "audit_log",
		TargetID:   key,
		AdminID:    middleware.GetAdminID(r.Context()).String(),
		AdminRole:  middleware.GetRole(r.Context()),
		Details:    exportDetails(filter, len(entries)),
	})

	if h.exports == nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit-%s.json"`, now.Format("20060102-150405")))
		w.WriteHeader(http.StatusOK)
		w.Write(body)
		return
	}

	if err := h.exports.Save(r.Context(), key, bytes.NewReader(body), "application/json"); err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to upload audit export")
		response.ServiceUnavailable(w, "Export storage is unavailable")
		return
	}
	url, err := h.exports.URL(r.Context(), key)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to sign audit export url")
		response.ServiceUnavailable(w, "Export storage is unavailable")
		return
	}

	response.OK(w, &ExportResponse{Key: key, URL: url, Entries: len(entries)})
}

func exportDetails(f audit.Filter, n int) audit.Details {
	d := audit.Details{"entries": n}
	if f.Action != "" {
		d["action"] = f.Action
	}
	if f.AdminID != "" {
		d["admin_id"] = f.AdminID
	}
	if f.TargetType != "" {
		d["target_type"] = f.TargetType
	}
	if f.From != nil {
		d["from"] = f.From.Format(time.RFC3339)
	}
	if f.To != nil {
		d["to"] = f.To.Format(time.RFC3339)
	}
	return d
}

// parseFilter reads audit filters from the query string. Dates accept RFC3339 or YYYY-MM-DD;
// a bare "to" date covers the whole day.
func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	f := audit.Filter{
		Action:     strings.TrimSpace(q.Get("action")),
		AdminID:    strings.TrimSpace(q.Get("admin_id")),
		TargetType: strings.TrimSpace(q.Get("target_type")),
	}

	if raw := q.Get("from"); raw != "" {
		t, _, err := parseTime(raw)
		if err != nil {
			return f, fmt.Errorf("%w: from", ErrInvalidFilter)
		}
		f.From = &t
	}
	if raw := q.Get("to"); raw != "" {
		t, dateOnly, err := parseTime(raw)
		if err != nil {
			return f, fmt.Errorf("%w: to", ErrInvalidFilter)
		}
		if dateOnly {
			t = t.Add(24*time.Hour - time.Nanosecond)
		}
		f.To = &t
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return f, fmt.Errorf("%w: to before from", ErrInvalidFilter)
	}
	return f, nil
}

func parseTime(raw string) (time.Time, bool, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, false, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	return t, true, err
}
