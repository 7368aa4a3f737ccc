package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/paulmach/orb"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
	"github.com/harmonyservices/gdalsubset/internal/core/usecases"
	"github.com/harmonyservices/gdalsubset/internal/pkg/geospatial"
)

// SubmitJobHandler accepts a Harmony operation and queues it.
func SubmitJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return errUnavailable(c, "job service not configured")
		}
		if len(c.Body()) == 0 {
			return errBadRequest(c, "request body must be a Harmony operation")
		}

		job, err := deps.Jobs.Submit(c.UserContext(), c.Body())
		if errors.Is(err, usecases.ErrInvalidMessage) {
			return errUnprocessable(c, err.Error())
		}
		if err != nil {
			LoggerFromCtx(c.UserContext()).Error("submit job failed", "error", err)
			return errInternal(c, "could not accept job")
		}

		c.Location("/v1/jobs/" + job.ID)
		return c.Status(fiber.StatusAccepted).JSON(job)
	}
}

// GetJobHandler returns a job by ID.
func GetJobHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return errUnavailable(c, "job service not configured")
		}
		job, err := deps.Jobs.Get(c.UserContext(), c.Params("id"))
		if errors.Is(err, domain.ErrJobNotFound) {
			return errNotFound(c, "job not found")
		}
		if err != nil {
			return errInternal(c, err.Error())
		}
		if !job.Status.Terminal() {
			c.Set("Cache-Control", "no-cache")
		}
		return c.JSON(job)
	}
}

// ListJobsHandler returns a page of jobs, newest first.
func ListJobsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Jobs == nil {
			return errUnavailable(c, "job service not configured")
		}
		offset := c.QueryInt("offset", 0)
		limit := c.QueryInt("limit", 20)
		if offset < 0 {
			offset = 0
		}
		if limit <= 0 || limit > 100 {
			limit = 20
		}

		jobs, total, err := deps.Jobs.List(c.UserContext(), offset, limit)
		if err != nil {
			return errInternal(c, err.Error())
		}
		if jobs == nil {
			jobs = []domain.Job{}
		}

		pg := Pagination{Offset: offset, Limit: limit, Total: total}
		setLinkHeader(c, pg)
		c.Set("Cache-Control", "no-cache")
		return c.JSON(JobPage{Data: jobs, Pagination: pg})
	}
}

// ClipRequest is the body of POST /v1/clip. The dataset extent comes
// either from Dataset or from GeoTransform with Width and Height.
type ClipRequest struct {
	BBox         []float64 `json:"bbox"`
	Dataset      []float64 `json:"dataset,omitempty"`
	GeoTransform []float64 `json:"geotransform,omitempty"`
	Width        int       `json:"width,omitempty"`
	Height       int       `json:"height,omitempty"`
}

// ClipResponse lists the clipped boxes as [west, south, east, north].
type ClipResponse struct {
	Dataset geospatial.DatasetBounds `json:"dataset"`
	Boxes   [][4]float64             `json:"boxes"`
}

// ClipHandler clips ?bbox= to ?dataset=, both given as
// west,south,east,north. ?format=geojson returns a FeatureCollection.
func ClipHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		box, err := geospatial.ParseBox(c.Query("bbox"))
		if err != nil {
			return errBadRequest(c, "bbox: "+err.Error())
		}
		extent, err := geospatial.ParseBox(c.Query("dataset"))
		if err != nil {
			return errBadRequest(c, "dataset: "+err.Error())
		}
		bounds := geospatial.BoundsOf(extent)
		return writeClip(c, bounds, deps.Clip.Clip(bounds, box))
	}
}

// ClipPostHandler clips the box in a ClipRequest body.
func ClipPostHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req ClipRequest
		if err := c.BodyParser(&req); err != nil {
			return errBadRequest(c, "invalid request body")
		}
		box, err := geospatial.BoxFromSlice(req.BBox)
		if err != nil {
			return errBadRequest(c, "bbox: "+err.Error())
		}

		switch {
		case len(req.GeoTransform) > 0:
			if len(req.GeoTransform) != 6 {
				return errBadRequest(c, "geotransform must have 6 coefficients")
			}
			if req.Width <= 0 || req.Height <= 0 {
				return errBadRequest(c, "width and height must be positive with a geotransform")
			}
			var gt domain.GeoTransform
			copy(gt[:], req.GeoTransform)
			bounds, boxes := deps.Clip.ClipRaster(gt, req.Width, req.Height, box)
			return writeClip(c, bounds, boxes)

		case len(req.Dataset) > 0:
			extent, err := geospatial.BoxFromSlice(req.Dataset)
			if err != nil {
				return errBadRequest(c, "dataset: "+err.Error())
			}
			bounds := geospatial.BoundsOf(extent)
			return writeClip(c, bounds, deps.Clip.Clip(bounds, box))

		default:
			return errBadRequest(c, "one of dataset or geotransform is required")
		}
	}
}

func writeClip(c *fiber.Ctx, bounds geospatial.DatasetBounds, boxes []orb.Bound) error {
	if c.Query("format") == "geojson" {
		return c.JSON(domain.BoxCollection(boxes), "application/geo+json")
	}

	resp := ClipResponse{Dataset: bounds, Boxes: make([][4]float64, 0, len(boxes))}
	for _, b := range boxes {
		resp.Boxes = append(resp.Boxes, geospatial.Corners(b))
	}
	return c.JSON(resp)
}
