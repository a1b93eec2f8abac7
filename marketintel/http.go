// CLAUDE:SUMMARY chi HTTP surface: health, metrics, companies/products CRUD, scraping, analytics and report routes with sentinel→status mapping.
package marketintel

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/marketintel/kit"
)

const maxBodyBytes = 1 << 20

// RegisterHTTP mounts the health, metrics and /api routes on r.
func (svc *Service) RegisterHTTP(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", svc.MetricsHandler())

	r.Route("/api", func(r chi.Router) {
		r.Use(kitContext)

		r.Route("/companies", func(r chi.Router) {
			r.Get("/", svc.httpListCompanies)
			r.Post("/", svc.httpCreateCompany)
			r.Route("/{companyID}", func(r chi.Router) {
				r.Get("/", svc.httpGetCompany)
				r.Put("/", svc.httpUpdateCompany)
				r.Delete("/", svc.httpDeactivateCompany)
				r.Get("/products", svc.httpListCompanyProducts)
				r.Get("/competitors", svc.httpCompetitors)
				r.Get("/reports", svc.httpListCompanyReports)
			})
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", svc.httpListProducts)
			r.Post("/", svc.httpCreateProduct)
			r.Route("/{productID}", func(r chi.Router) {
				r.Get("/", svc.httpGetProduct)
				r.Put("/", svc.httpUpdateProduct)
				r.Delete("/", svc.httpDeactivateProduct)
				r.Post("/scrape", svc.httpScrapeProduct)
				r.Get("/observations", svc.httpListObservations)
				r.Get("/alerts", svc.httpListAlerts)
				r.Get("/price-trend", svc.httpPriceTrend)
				r.Get("/sentiment", svc.httpSentiment)
				r.Get("/performance", svc.httpPerformance)
				r.Get("/anomalies", svc.httpAnomalies)
			})
		})

		r.Post("/scrape", svc.httpScrapeAll)
		r.Get("/scrape/stats", svc.httpScrapeStats)
		r.Get("/market/overview", svc.httpMarketOverview)

		r.Route("/reports", func(r chi.Router) {
			r.Get("/", svc.httpListReports)
			r.Post("/", svc.httpGenerateReport)
			r.Get("/{reportID}", svc.httpGetReport)
			r.Post("/{reportID}/regenerate", svc.httpRegenerateReport)
			r.Get("/{reportID}/render", svc.httpRenderReport)
		})
	})
}

// kitContext carries the transport and chi's request ID into the context.
func kitContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Companies ---

type companyRequest struct {
	Name         string `json:"name"`
	Domain       string `json:"domain"`
	Industry     string `json:"industry"`
	CompetitorTo string `json:"competitor_to"`
}

func (svc *Service) httpListCompanies(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListCompanies(r.Context(), queryBool(r, "active", true))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Service) httpCreateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := &Company{Name: req.Name, Domain: req.Domain, Industry: req.Industry, CompetitorTo: req.CompetitorTo}
	if err := svc.CreateCompany(r.Context(), c); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (svc *Service) httpGetCompany(w http.ResponseWriter, r *http.Request) {
	c, err := svc.GetCompany(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (svc *Service) httpUpdateCompany(w http.ResponseWriter, r *http.Request) {
	var req companyRequest
	if !decodeBody(w, r, &req) {
		return
	}
	c := &Company{
		ID:           chi.URLParam(r, "companyID"),
		Name:         req.Name,
		Domain:       req.Domain,
		Industry:     req.Industry,
		CompetitorTo: req.CompetitorTo,
	}
	if err := svc.UpdateCompany(r.Context(), c); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (svc *Service) httpDeactivateCompany(w http.ResponseWriter, r *http.Request) {
	if err := svc.DeactivateCompany(r.Context(), chi.URLParam(r, "companyID")); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (svc *Service) httpListCompanyProducts(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListProducts(r.Context(), chi.URLParam(r, "companyID"), queryBool(r, "active", true))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Service) httpCompetitors(w http.ResponseWriter, r *http.Request) {
	res, err := svc.Competitors(r.Context(), chi.URLParam(r, "companyID"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpListCompanyReports(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListReports(r.Context(), chi.URLParam(r, "companyID"),
		r.URL.Query().Get("kind"), queryInt(r, "limit", 50))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- Products ---

type productRequest struct {
	CompanyID      string          `json:"company_id"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	ExternalID     string          `json:"external_id"`
	URL            string          `json:"url"`
	TrackingConfig json.RawMessage `json:"tracking_config"`
}

func (p productRequest) product(id string) *Product {
	cfg := string(p.TrackingConfig)
	if cfg == "null" {
		cfg = ""
	}
	return &Product{
		ID:         id,
		CompanyID:  p.CompanyID,
		Name:       p.Name,
		Category:   p.Category,
		ExternalID: p.ExternalID,
		URL:        p.URL,
		ConfigJSON: cfg,
	}
}

func (svc *Service) httpListProducts(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListProducts(r.Context(), r.URL.Query().Get("company_id"), queryBool(r, "active", true))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Service) httpCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := req.product("")
	if err := svc.CreateProduct(r.Context(), p); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (svc *Service) httpGetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := svc.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (svc *Service) httpUpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p := req.product(chi.URLParam(r, "productID"))
	if err := svc.UpdateProduct(r.Context(), p); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (svc *Service) httpDeactivateProduct(w http.ResponseWriter, r *http.Request) {
	if err := svc.DeactivateProduct(r.Context(), chi.URLParam(r, "productID")); err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

// --- Scraping ---

func (svc *Service) httpScrapeProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "productID")
	if queryBool(r, "async", false) {
		taskID, err := svc.EnqueueScrape(r.Context(), id)
		if err != nil {
			svc.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
		return
	}
	res, err := svc.ScrapeProduct(r.Context(), id)
	if err != nil && res == nil {
		svc.writeError(w, r, err)
		return
	}
	if err != nil {
		writeJSON(w, statusFor(err), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpScrapeAll(w http.ResponseWriter, r *http.Request) {
	if queryBool(r, "async", false) {
		n, err := svc.EnqueueAllActive(r.Context())
		if err != nil {
			svc.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]any{"queued": n, "status": "queued"})
		return
	}
	sum, err := svc.ScrapeAllActive(r.Context())
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

func (svc *Service) httpScrapeStats(w http.ResponseWriter, r *http.Request) {
	st, err := svc.ScrapeStats(r.Context())
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (svc *Service) httpListObservations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	obs, err := svc.ListObservations(r.Context(), chi.URLParam(r, "productID"), q.Get("metric"),
		queryInt(r, "days", 30), queryInt(r, "limit", 100))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, obs)
}

func (svc *Service) httpListAlerts(w http.ResponseWriter, r *http.Request) {
	list, err := svc.ListAlerts(r.Context(), chi.URLParam(r, "productID"), queryInt(r, "limit", 50))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// --- Analytics ---

func (svc *Service) httpPriceTrend(w http.ResponseWriter, r *http.Request) {
	res, err := svc.PriceTrend(r.Context(), chi.URLParam(r, "productID"), queryInt(r, "days", 30))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpSentiment(w http.ResponseWriter, r *http.Request) {
	res, err := svc.Sentiment(r.Context(), chi.URLParam(r, "productID"), queryInt(r, "days", 7))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpPerformance(w http.ResponseWriter, r *http.Request) {
	res, err := svc.PerformanceSummary(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpAnomalies(w http.ResponseWriter, r *http.Request) {
	res, err := svc.Anomalies(r.Context(), chi.URLParam(r, "productID"),
		r.URL.Query().Get("metric"), queryInt(r, "days", 30))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (svc *Service) httpMarketOverview(w http.ResponseWriter, r *http.Request) {
	res, err := svc.MarketOverview(r.Context())
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Reports ---

func (svc *Service) httpListReports(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := svc.ListReports(r.Context(), q.Get("company_id"), q.Get("kind"), queryInt(r, "limit", 50))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (svc *Service) httpGenerateReport(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CompanyID  string `json:"company_id"`
		Kind       string `json:"kind"`
		WindowDays int    `json:"window_days"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if queryBool(r, "async", false) {
		taskID, err := svc.EnqueueReport(r.Context(), req.CompanyID, req.Kind, req.WindowDays)
		if err != nil {
			svc.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusAccepted, map[string]string{"task_id": taskID, "status": "queued"})
		return
	}
	rep, err := svc.GenerateReport(r.Context(), req.CompanyID, req.Kind, req.WindowDays)
	svc.writeReport(w, r, rep, err)
}

func (svc *Service) httpGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := svc.GetReport(r.Context(), chi.URLParam(r, "reportID"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (svc *Service) httpRegenerateReport(w http.ResponseWriter, r *http.Request) {
	rep, err := svc.RegenerateReport(r.Context(), chi.URLParam(r, "reportID"), queryInt(r, "window_days", 0))
	svc.writeReport(w, r, rep, err)
}

func (svc *Service) httpRenderReport(w http.ResponseWriter, r *http.Request) {
	body, contentType, err := svc.RenderReport(r.Context(), chi.URLParam(r, "reportID"), r.URL.Query().Get("format"))
	if err != nil {
		svc.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// writeReport answers with the report even when generation failed, so the
// caller sees the failed status.
func (svc *Service) writeReport(w http.ResponseWriter, r *http.Request, rep *Report, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, rep)
	case rep != nil:
		svc.logger.WarnContext(r.Context(), "marketintel: report failed", "report_id", rep.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, rep)
	default:
		svc.writeError(w, r, err)
	}
}

// --- helpers ---

// statusFor maps the error taxonomy to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrNoData):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrMissingConfiguration), errors.Is(err, ErrUnsupportedSource):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrFetchFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (svc *Service) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		svc.logger.ErrorContext(r.Context(), "marketintel: request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, code, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func queryBool(r *http.Request, key string, def bool) bool {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return b
}
