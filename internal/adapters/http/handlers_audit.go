package web

import (
	"html/template"
	"net/http"

	auditStore "rewards/internal/adapters/storage/audit"
	"rewards/internal/application/listutil"
	auditDomain "rewards/internal/domain/audit"
	"rewards/internal/domain/route"
)

// auditFilterKeys are the query parameters the audit page filters on.
var auditFilterKeys = []string{"category", "action", "role", "profile"}

// handleAdminAudit renders the audit log page (GET /admin/audit)
// PRE: Guard admitted an admin session
// POST: Renders one page of auth events, newest first, with optional filters
func (s *server) handleAdminAudit(w http.ResponseWriter, r *http.Request) {
	d := route.Lookup("/admin/audit")
	q := r.URL.Query()
	filters := listutil.ParseFilters(q, auditFilterKeys...)
	data := map[string]any{"Title": d.Title, "Summary": d.Summary, "Action": filters["action"]}
	if s.deps.Audit == nil {
		renderTemplate(w, r, "audit.html", http.StatusOK, data)
		return
	}

	filter := auditFilter(filters)
	total, err := s.deps.Audit.Count(r.Context(), filter)
	if err != nil {
		internalError(w, err)
		return
	}
	page := listutil.NewPageInfo(listutil.ParsePageParams(q), total)
	events, err := s.deps.Audit.List(r.Context(), filter, page.PerPage, page.Offset())
	if err != nil {
		internalError(w, err)
		return
	}

	data["Events"] = events
	data["Page"] = page
	if page.HasPrev() {
		data["PrevURL"] = pageURL(filters, page.Page-1, page.PerPage)
	}
	if page.HasNext() {
		data["NextURL"] = pageURL(filters, page.Page+1, page.PerPage)
	}
	renderTemplate(w, r, "audit.html", http.StatusOK, data)
}

// pageURL is a pager link. The query is built by url.Values, so it is trusted as a URL.
func pageURL(f listutil.Filters, page, perPage int) template.URL {
	return template.URL("/admin/audit?" + f.Query(page, perPage))
}

func auditFilter(f listutil.Filters) auditStore.Filter {
	var filter auditStore.Filter
	if v, ok := f["category"]; ok {
		cat := auditDomain.Category(v)
		filter.Category = &cat
	}
	if v, ok := f["action"]; ok {
		act := auditDomain.Action(v)
		filter.Action = &act
	}
	if v, ok := f["role"]; ok {
		filter.ActorRole = &v
	}
	if v, ok := f["profile"]; ok {
		filter.ProfileID = &v
	}
	return filter
}
