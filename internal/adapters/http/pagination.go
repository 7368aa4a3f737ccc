package http

import (
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/harmonyservices/gdalsubset/internal/core/domain"
)

// JobPage is the body of GET /v1/jobs.
type JobPage struct {
	Data       []domain.Job `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

// Pagination describes one offset/limit window over the job list.
type Pagination struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
	Total  int `json:"total"`
}

// lastOffset is the start of the final page, aligned to Limit.
func (p Pagination) lastOffset() int {
	if p.Total <= p.Limit {
		return 0
	}
	return (p.Total - 1) / p.Limit * p.Limit
}

func (p Pagination) link(path string, offset int, rel string) string {
	return "<" + path + "?offset=" + strconv.Itoa(offset) + "&limit=" + strconv.Itoa(p.Limit) + `>; rel="` + rel + `"`
}

// setLinkHeader writes RFC 8288 first/prev/next/last links for p.
func setLinkHeader(c *fiber.Ctx, p Pagination) {
	path := c.Path()
	links := []string{p.link(path, 0, "first")}
	if p.Offset > 0 {
		links = append(links, p.link(path, max(p.Offset-p.Limit, 0), "prev"))
	}
	if p.Offset+p.Limit < p.Total {
		links = append(links, p.link(path, p.Offset+p.Limit, "next"))
	}
	links = append(links, p.link(path, p.lastOffset(), "last"))
	c.Set(fiber.HeaderLink, strings.Join(links, ", "))
}
