package handlers

import (
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/diario/internal/models"
	"github.com/ternarybob/diario/internal/queue"
	"github.com/ternarybob/diario/internal/registry"
)

// estimatePerCitySeconds is the planning figure for one city crawl used by
// the today-yesterday estimate. Real crawls finish well under the 60 s
// deadline; ten seconds matches what the two-day window typically costs.
const estimatePerCitySeconds = 10

// CrawlHandler accepts crawl submissions and hands them to the dispatcher
type CrawlHandler struct {
	dispatcher  *queue.Dispatcher
	registry    *registry.Registry
	concurrency int
	logger      arbor.ILogger
}

// NewCrawlHandler creates a new CrawlHandler
func NewCrawlHandler(dispatcher *queue.Dispatcher, reg *registry.Registry, concurrency int, logger arbor.ILogger) *CrawlHandler {
	if concurrency < 1 {
		concurrency = 1
	}
	return &CrawlHandler{
		dispatcher:  dispatcher,
		registry:    reg,
		concurrency: concurrency,
		logger:      logger,
	}
}

// crawlRequest is the submission body shared by the crawl endpoints
type crawlRequest struct {
	Cities    []string    `json:"cities"`
	Platform  string      `json:"platform"`
	StartDate models.Date `json:"startDate"`
	EndDate   models.Date `json:"endDate"`
}

// crawlResponse reports what the dispatcher did with a submission
type crawlResponse struct {
	Success              bool     `json:"success"`
	TasksEnqueued        int      `json:"tasksEnqueued"`
	Cities               []string `json:"cities"`
	Error                string   `json:"error,omitempty"`
	FailedCount          int      `json:"failedCount,omitempty"`
	EstimatedTimeMinutes int      `json:"estimatedTimeMinutes,omitempty"`
}

// CrawlHandler handles POST /crawl: the named cities, or the whole registry
// when none are named, over an optional explicit window.
func (h *CrawlHandler) CrawlHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	h.dispatch(w, r, queue.DispatchRequest{
		SpiderIDs: req.Cities,
		All:       len(req.Cities) == 0,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}, false)
}

// CitiesHandler handles POST /crawl/cities: named cities over an explicit
// window, both mandatory.
func (h *CrawlHandler) CitiesHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Cities) == 0 {
		WriteError(w, http.StatusBadRequest, "cities is required")
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		WriteError(w, http.StatusBadRequest, "startDate and endDate are required")
		return
	}

	h.dispatch(w, r, queue.DispatchRequest{
		SpiderIDs: req.Cities,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}, false)
}

// TodayYesterdayHandler handles POST /crawl/today-yesterday: the daily sweep
// over the trailing two days, optionally narrowed to one platform.
func (h *CrawlHandler) TodayYesterdayHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}

	var req crawlRequest
	if err := decodeBody(r, &req); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	today := models.Today()
	dispatchReq := queue.DispatchRequest{
		All:       req.Platform == "",
		StartDate: today.AddDays(-1),
		EndDate:   today,
	}
	if req.Platform != "" {
		dispatchReq.SpiderType = models.SpiderType(req.Platform)
	}

	h.dispatch(w, r, dispatchReq, true)
}

// dispatch submits the request and writes the shared response shape.
// 200 when everything enqueued, 207 when only part of the batch made it,
// 400 for caller mistakes and 500 otherwise.
func (h *CrawlHandler) dispatch(w http.ResponseWriter, r *http.Request, req queue.DispatchRequest, estimate bool) {
	result, err := h.dispatcher.Submit(r.Context(), req)
	if err != nil {
		WriteError(w, statusForError(err), err.Error())
		return
	}

	response := crawlResponse{
		Success:       result.AllSucceeded(),
		TasksEnqueued: result.Enqueued,
		Cities:        h.enqueuedCities(req, result),
		FailedCount:   result.Failed,
	}
	if !result.AllSucceeded() {
		response.Error = "some tasks could not be enqueued"
	}
	if estimate {
		seconds := result.Enqueued * estimatePerCitySeconds / h.concurrency
		response.EstimatedTimeMinutes = (seconds + 59) / 60
	}

	status := http.StatusOK
	if result.Failed > 0 {
		status = http.StatusMultiStatus
	}
	WriteJSON(w, status, response)
}

// enqueuedCities reconstructs which ids actually made it onto the queue
func (h *CrawlHandler) enqueuedCities(req queue.DispatchRequest, result queue.DispatchResult) []string {
	failed := make(map[string]bool, len(result.Failures))
	for _, failure := range result.Failures {
		failed[failure.SpiderID] = true
	}

	var selected []string
	switch {
	case len(req.SpiderIDs) > 0:
		selected = req.SpiderIDs
	case req.SpiderType != "":
		configs, err := h.registry.ByType(req.SpiderType)
		if err != nil {
			return []string{}
		}
		for _, cfg := range configs {
			selected = append(selected, cfg.ID)
		}
	default:
		for _, cfg := range h.registry.All() {
			selected = append(selected, cfg.ID)
		}
	}

	cities := make([]string, 0, len(selected))
	for _, id := range selected {
		if !failed[id] {
			cities = append(cities, id)
		}
	}
	return cities
}
