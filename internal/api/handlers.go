package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/chem-advisor/internal/disambiguation"
	"github.com/sells-group/chem-advisor/internal/model"
	"github.com/sells-group/chem-advisor/internal/replacement"
	"github.com/sells-group/chem-advisor/internal/store"
)

const (
	maxBodyBytes = 4 << 20
	maxListLimit = 500
)

type handlers struct {
	deps Deps
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if h.deps.Breakers != nil {
		states := h.deps.Breakers.States()
		resp["circuits"] = states
		for _, s := range states {
			if s == "open" {
				resp["status"] = "degraded"
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handlers) listProducts(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		unavailable(w, "store")
		return
	}
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var products []model.Product
	if search := strings.TrimSpace(q.Get("q")); search != "" {
		products, err = h.deps.Store.SearchProducts(r.Context(), search, limit)
	} else {
		offset, _ := strconv.Atoi(q.Get("offset"))
		products, err = h.deps.Store.ListProducts(r.Context(), store.ProductFilter{
			Category:     q.Get("category"),
			Manufacturer: q.Get("manufacturer"),
			Source:       q.Get("source"),
			ActiveOnly:   q.Get("active") == "true",
			Limit:        limit,
			Offset:       max(offset, 0),
		})
	}
	if err != nil {
		internalError(w, r, err)
		return
	}
	if products == nil {
		products = []model.Product{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products, "count": len(products)})
}

func (h *handlers) getProduct(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		unavailable(w, "store")
		return
	}
	p, err := h.deps.Store.GetProduct(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalError(w, r, err)
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *handlers) discover(w http.ResponseWriter, r *http.Request) {
	if h.deps.Discoverer == nil {
		unavailable(w, "replacement discovery")
		return
	}
	var req model.ReplacementRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.OriginalProductID) == "" {
		writeError(w, http.StatusBadRequest, "original_product_id is required")
		return
	}

	run, err := h.deps.Discoverer.Discover(r.Context(), req)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

type scoreRequest struct {
	Original   model.Product              `json:"original"`
	Candidates []model.Product            `json:"candidates"`
	Request    model.ReplacementRequest   `json:"request"`
	Criteria   *model.ReplacementCriteria `json:"criteria,omitempty"`
}

func (h *handlers) score(w http.ResponseWriter, r *http.Request) {
	if h.deps.Scorer == nil {
		unavailable(w, "scoring")
		return
	}
	var req scoreRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Original.Name) == "" {
		writeError(w, http.StatusBadRequest, "original.name is required")
		return
	}

	criteria := replacement.BuildCriteria(req.Request, h.deps.ReasonExclusions)
	if req.Criteria != nil {
		criteria = *req.Criteria
	}

	candidates, err := h.deps.Scorer.GenerateCandidates(r.Context(), req.Original, req.Candidates, criteria, req.Request)
	if err != nil {
		internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"criteria":   criteria,
		"candidates": candidates,
	})
}

func (h *handlers) listRuns(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		unavailable(w, "store")
		return
	}
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	offset, _ := strconv.Atoi(q.Get("offset"))

	runs, err := h.deps.Store.ListRuns(r.Context(), store.RunFilter{
		Status:            model.RunStatus(q.Get("status")),
		OriginalProductID: q.Get("original_product_id"),
		Limit:             limit,
		Offset:            max(offset, 0),
	})
	if err != nil {
		internalError(w, r, err)
		return
	}
	if runs == nil {
		runs = []model.ReplacementRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs, "count": len(runs)})
}

func (h *handlers) getRun(w http.ResponseWriter, r *http.Request) {
	if h.deps.Store == nil {
		unavailable(w, "store")
		return
	}
	run, err := h.deps.Store.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		internalError(w, r, err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

type disambiguateRequest struct {
	Query   string          `json:"query"`
	Payload json.RawMessage `json:"payload"`
}

func (h *handlers) disambiguate(w http.ResponseWriter, r *http.Request) {
	if h.deps.Parser == nil {
		unavailable(w, "disambiguation")
		return
	}
	var req disambiguateRequest
	if !decode(w, r, &req) {
		return
	}
	if len(req.Payload) == 0 {
		writeError(w, http.StatusBadRequest, "payload is required")
		return
	}
	if !disambiguation.Detect(req.Payload) {
		writeJSON(w, http.StatusOK, map[string]any{"detected": false})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Parser.Parse(req.Payload, req.Query))
}

type queryRequest struct {
	Query string `json:"query"`
}

func (h *handlers) search(w http.ResponseWriter, r *http.Request) {
	if h.deps.Search == nil {
		unavailable(w, "search")
		return
	}
	var req queryRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	res, err := h.deps.Search.Search(r.Context(), req.Query)
	if err != nil {
		upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type chatRequest struct {
	Question string `json:"question"`
}

func (h *handlers) chat(w http.ResponseWriter, r *http.Request) {
	if h.deps.Chat == nil {
		unavailable(w, "chat")
		return
	}
	var req chatRequest
	if !decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}
	ans, err := h.deps.Chat.Ask(r.Context(), req.Question)
	if err != nil {
		upstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func parseLimit(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, eris.New("limit must be a non-negative integer")
	}
	return min(n, maxListLimit), nil
}

// decode reads a JSON body, writing a 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func unavailable(w http.ResponseWriter, what string) {
	writeError(w, http.StatusServiceUnavailable, what+" is not configured")
}

func internalError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Error("api: request failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// upstreamError maps upstream search and model failures to 502.
func upstreamError(w http.ResponseWriter, r *http.Request, err error) {
	zap.L().Warn("api: upstream failed", zap.String("path", r.URL.Path), zap.Error(err))
	writeError(w, http.StatusBadGateway, err.Error())
}
