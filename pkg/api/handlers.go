package api

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb/geojson"

	"github.com/azybler/roadnet/pkg/geo"
	"github.com/azybler/roadnet/pkg/network"
	"github.com/azybler/roadnet/pkg/routing"
)

const (
	maxBodyBytes = 64 * 1024
	maxPoints    = 100
)

// Networks exposes the served network for reporting and reloads.
// *network.Manager implements it.
type Networks interface {
	Current() *network.Network
	Rebuild(ctx context.Context) (*network.Network, error)
}

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	router   routing.Router
	networks Networks
	logger   *slog.Logger
}

// NewHandlers creates handlers. networks may be nil, in which case stats
// and rebuild report the network as not loaded.
func NewHandlers(router routing.Router, networks Networks, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{
		router:   router,
		networks: networks,
		logger:   logger,
	}
}

// HandleRoute handles POST /api/v1/route.
func (h *Handlers) HandleRoute(c *gin.Context) {
	if c.ContentType() != "application/json" {
		writeError(c, http.StatusBadRequest, "invalid_request", "", "content type must be application/json")
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	var req RouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid_request", "", err.Error())
		return
	}

	crs, err := geo.ParseCRS(req.CRS)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_crs", "crs", err.Error())
		return
	}
	points, field, err := req.points(crs)
	if err != nil {
		writeError(c, http.StatusBadRequest, "invalid_coordinates", field, err.Error())
		return
	}

	var res *routing.Result
	if len(points) == 2 {
		res, err = h.router.ShortestPath(c.Request.Context(), points[0], points[1])
	} else {
		res, err = h.router.ShortestPathChain(c.Request.Context(), points)
	}
	if err != nil {
		h.writeRouteError(c, err)
		return
	}

	c.JSON(http.StatusOK, NewRouteResponse(res))
}

// points validates the request and converts it to query points. It returns
// the offending field on error.
func (req RouteRequest) points(crs geo.CRS) ([]routing.Point, string, error) {
	var in []PointJSON
	switch {
	case len(req.Points) > 0:
		if req.Start != nil || req.End != nil {
			return nil, "points", errors.New("points cannot be combined with start/end")
		}
		if len(req.Points) < 2 {
			return nil, "points", routing.ErrTooFewPoints
		}
		if len(req.Points) > maxPoints {
			return nil, "points", errors.New("too many points")
		}
		in = req.Points
	case req.Start == nil:
		return nil, "start", errors.New("start is required")
	case req.End == nil:
		return nil, "end", errors.New("end is required")
	default:
		in = []PointJSON{*req.Start, *req.End}
	}

	out := make([]routing.Point, len(in))
	for i, p := range in {
		if err := validateCoord(p, crs); err != nil {
			return nil, pointField(req, i), err
		}
		pt := routing.Pt(p.X, p.Y)
		pt.CRS = crs
		out[i] = pt
	}
	return out, "", nil
}

func pointField(req RouteRequest, i int) string {
	if len(req.Points) > 0 {
		return "points"
	}
	if i == 0 {
		return "start"
	}
	return "end"
}

func validateCoord(p PointJSON, crs geo.CRS) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return errors.New("coordinates must be finite numbers")
	}
	if crs.Geographic() && (p.Y < -90 || p.Y > 90 || p.X < -180 || p.X > 180) {
		return errors.New("coordinates out of range")
	}
	return nil
}

func (h *Handlers) writeRouteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, routing.ErrNoCandidates):
		writeError(c, http.StatusUnprocessableEntity, "point_too_far_from_road", "", "")
	case errors.Is(err, routing.ErrNoPath):
		writeError(c, http.StatusNotFound, "no_route_found", "", "")
	case errors.Is(err, routing.ErrTooFewPoints):
		writeError(c, http.StatusBadRequest, "invalid_coordinates", "points", err.Error())
	case errors.Is(err, geo.ErrUnsupportedReprojection):
		writeError(c, http.StatusBadRequest, "unsupported_crs", "crs", err.Error())
	case errors.Is(err, network.ErrNotReady):
		c.Header("Retry-After", "5")
		writeError(c, http.StatusServiceUnavailable, "network_not_ready", "", "")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(c, http.StatusServiceUnavailable, "request_timeout", "", "")
	default:
		h.logger.Error("route query failed", "error", err)
		writeError(c, http.StatusInternalServerError, "internal_error", "", "")
	}
}

// NewRouteResponse converts a routing result into its JSON form. Parts in a
// geographic CRS are measured on the sphere for LengthMeters.
func NewRouteResponse(res *routing.Result) RouteResponse {
	crs := res.CRS
	fc := geojson.NewFeatureCollection()
	var meters float64
	for i, part := range res.Parts {
		f := geojson.NewFeature(part)
		f.Properties["part"] = i
		fc.Append(f)
		meters += geo.LengthMeters(part, crs)
	}

	resp := RouteResponse{
		Length:       res.Length,
		LengthMeters: meters,
		FeatureIDs:   res.FeatureIDs,
		Nodes:        len(res.Nodes),
		Connectors:   res.Connectors,
		Unresolved:   res.Unresolved,
		Route:        fc,
	}
	if !crs.IsZero() {
		resp.CRS = crs.String()
	}
	if resp.FeatureIDs == nil {
		resp.FeatureIDs = []int32{}
	}
	return resp
}

func (h *Handlers) current() *network.Network {
	if h.networks == nil {
		return nil
	}
	return h.networks.Current()
}

// HandleHealth handles GET /api/v1/health. It reports 503 until a network
// is loaded.
func (h *Handlers) HandleHealth(c *gin.Context) {
	n := h.current()
	if n == nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "loading"})
		return
	}
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Layer: n.Layer})
}

// HandleStats handles GET /api/v1/stats.
func (h *Handlers) HandleStats(c *gin.Context) {
	n := h.current()
	if n == nil {
		writeError(c, http.StatusServiceUnavailable, "network_not_ready", "", "")
		return
	}
	c.JSON(http.StatusOK, n.Stats())
}

// HandleRebuild handles POST /api/v1/rebuild. The served network is only
// replaced when the rebuild succeeds.
func (h *Handlers) HandleRebuild(c *gin.Context) {
	if h.networks == nil {
		writeError(c, http.StatusServiceUnavailable, "network_not_ready", "", "")
		return
	}
	// Detach from the request deadline: a rebuild outlives a routing query.
	n, err := h.networks.Rebuild(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.logger.Warn("rebuild failed", "error", err)
		writeError(c, http.StatusInternalServerError, "rebuild_failed", "", err.Error())
		return
	}
	c.JSON(http.StatusOK, n.Stats())
}

func writeError(c *gin.Context, status int, code, field, detail string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: code, Field: field, Detail: detail})
}
