// README: Ride search handlers for GET query strings and POST JSON bodies.
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"boleia/internal/modules/matching"
	"boleia/internal/types"
)

type Searcher interface {
	Search(ctx context.Context, q matching.Query) (*matching.Response, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(svc Searcher) *SearchHandler {
	return &SearchHandler{search: svc}
}

type searchReq struct {
	From       string   `json:"from"`
	To         string   `json:"to"`
	FromLat    *float64 `json:"from_lat"`
	FromLng    *float64 `json:"from_lng"`
	ToLat      *float64 `json:"to_lat"`
	ToLng      *float64 `json:"to_lng"`
	RadiusKm   float64  `json:"radius_km"`
	MaxResults int      `json:"max_results"`
}

// Get handles GET /api/rides/search?from=&to=&from_lat=&from_lng=&to_lat=&to_lng=&radius_km=&max_results=.
func (h *SearchHandler) Get(c *gin.Context) {
	req, err := searchReqFromQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	h.run(c, req)
}

// Post handles POST /api/rides/search with the same fields as a JSON body.
func (h *SearchHandler) Post(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	h.run(c, req)
}

func (h *SearchHandler) run(c *gin.Context, req searchReq) {
	q := matching.Query{
		From:       req.From,
		To:         req.To,
		RadiusKm:   req.RadiusKm,
		MaxResults: req.MaxResults,
	}
	var err error
	if q.FromCoords, err = pointFrom("from", req.FromLat, req.FromLng); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}
	if q.ToCoords, err = pointFrom("to", req.ToLat, req.ToLng); err != nil {
		writeError(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.search.Search(c.Request.Context(), q)
	if err != nil {
		writeSearchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, resp)
}

func searchReqFromQuery(c *gin.Context) (searchReq, error) {
	req := searchReq{From: c.Query("from"), To: c.Query("to")}
	floats := []struct {
		name string
		dst  **float64
	}{
		{"from_lat", &req.FromLat},
		{"from_lng", &req.FromLng},
		{"to_lat", &req.ToLat},
		{"to_lng", &req.ToLng},
	}
	for _, f := range floats {
		raw := strings.TrimSpace(c.Query(f.name))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("invalid %s", f.name)
		}
		*f.dst = &v
	}
	if raw := strings.TrimSpace(c.Query("radius_km")); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return req, fmt.Errorf("invalid radius_km")
		}
		req.RadiusKm = v
	}
	if raw := strings.TrimSpace(c.Query("max_results")); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return req, fmt.Errorf("invalid max_results")
		}
		req.MaxResults = v
	}
	return req, nil
}

// pointFrom requires lat and lng together.
func pointFrom(side string, lat, lng *float64) (*types.Point, error) {
	switch {
	case lat == nil && lng == nil:
		return nil, nil
	case lat == nil || lng == nil:
		return nil, fmt.Errorf("%s_lat and %s_lng must be sent together", side, side)
	}
	return &types.Point{Lat: *lat, Lng: *lng}, nil
}
