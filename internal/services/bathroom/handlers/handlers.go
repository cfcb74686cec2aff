package handlers

import (
	"context"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/transconnect-go/internal/domain/bathroom"
	"github.com/transconnect-go/pkg/apperr"
	"github.com/transconnect-go/pkg/config"
	"github.com/transconnect-go/pkg/response"
	"github.com/transconnect-go/pkg/validation"
)

// Locator finds bathrooms near a point.
type Locator interface {
	Near(ctx context.Context, q bathroom.Query) ([]bathroom.Bathroom, error)
}

// LookupQuery is the query string of GET /bathrooms. Coordinates stay
// strings so the format check reports a violation instead of a bind error.
// location is a pre-encoded "lat=..&lng=.." pair that fills whichever
// coordinate is missing; explicit lat/lng win.
type LookupQuery struct {
	Lat           string `form:"lat" validate:"omitempty,latitude"`
	Lng           string `form:"lng" validate:"omitempty,longitude"`
	Location      string `form:"location"`
	Accessibility string `form:"accessibility"`
}

type BathroomHandlers struct {
	locator          Locator
	defaultLatitude  float64
	defaultLongitude float64
}

func NewBathroomHandlers(locator Locator, cfg config.BathroomConfig) *BathroomHandlers {
	return &BathroomHandlers{
		locator:          locator,
		defaultLatitude:  cfg.DefaultLatitude,
		defaultLongitude: cfg.DefaultLongitude,
	}
}

// ListBathrooms handles GET /bathrooms
func (h *BathroomHandlers) ListBathrooms(c *gin.Context) {
	var q LookupQuery
	if err := validation.BindQuery(c, &q); err != nil {
		response.Fail(c, err)
		return
	}

	query, err := h.resolve(q)
	if err != nil {
		response.Fail(c, err)
		return
	}

	bathrooms, err := h.locator.Near(c.Request.Context(), query)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, "bathrooms", bathrooms)
}

func (h *BathroomHandlers) resolve(q LookupQuery) (bathroom.Query, error) {
	if q.Location != "" && (q.Lat == "" || q.Lng == "") {
		values, err := url.ParseQuery(q.Location)
		if err != nil {
			return bathroom.Query{}, apperr.BadRequest("location must be formatted as lat=<latitude>&lng=<longitude>")
		}
		if q.Lat == "" {
			q.Lat = values.Get("lat")
		}
		if q.Lng == "" {
			q.Lng = values.Get("lng")
		}
		if violations := validation.Validate(&q); len(violations) > 0 {
			return bathroom.Query{}, apperr.BadRequest(violations...)
		}
	}

	query := bathroom.Query{
		Latitude:   h.defaultLatitude,
		Longitude:  h.defaultLongitude,
		Accessible: q.Accessibility == "true",
	}
	if q.Lat != "" {
		query.Latitude, _ = strconv.ParseFloat(q.Lat, 64)
	}
	if q.Lng != "" {
		query.Longitude, _ = strconv.ParseFloat(q.Lng, 64)
	}
	return query, nil
}
