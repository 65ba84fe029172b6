package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Sternrassler/modelzoo-client/pkg/browse"
	"github.com/Sternrassler/modelzoo-client/pkg/catalog"
	"github.com/Sternrassler/modelzoo-client/pkg/dashboard"
	"github.com/labstack/echo/v4"
)

// HealthResponse is the body of /health/.
type HealthResponse struct {
	Status    string           `json:"status"`
	Dashboard dashboard.Status `json:"dashboard"`
	Stale     bool             `json:"stale"`
}

func (s *Server) health(c echo.Context) error {
	snap := s.dashboard.Snapshot()
	return c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		Dashboard: snap.Status,
		Stale:     snap.Stale,
	})
}

// withoutItems drops the per-kind item lists unless ?items=true.
func withoutItems(c echo.Context, snap dashboard.Snapshot) dashboard.Snapshot {
	if include, _ := strconv.ParseBool(c.QueryParam("items")); !include {
		snap.Items = nil
	}
	return snap
}

func (s *Server) getDashboard(c echo.Context) error {
	return c.JSON(http.StatusOK, withoutItems(c, s.dashboard.Snapshot()))
}

func (s *Server) postReload(c echo.Context) error {
	snap, err := s.Reload(c.Request().Context())

	var failure *dashboard.Failure
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, withoutItems(c, snap))
	case errors.Is(err, dashboard.ErrReloadInProgress):
		return echo.NewHTTPError(http.StatusConflict, ErrorResponse{Error: err.Error()})
	case errors.As(err, &failure):
		status := http.StatusBadGateway
		if failure.Kind == dashboard.FailureTimeout {
			status = http.StatusGatewayTimeout
		}
		return echo.NewHTTPError(status, ErrorResponse{Error: failure.Error(), Failure: failure})
	default:
		return upstreamError(err)
	}
}

// TagCategory is one group of the search tag vocabulary.
type TagCategory struct {
	Name string   `json:"name"`
	Tags []string `json:"tags"`
}

// TagsResponse is the body of /api/tags/. Custom echoes the selected tags
// (repeated tag parameters) that are not part of the vocabulary.
type TagsResponse struct {
	Categories []TagCategory `json:"categories"`
	Custom     []string      `json:"custom"`
}

func (s *Server) listTags(c echo.Context) error {
	resp := TagsResponse{
		Categories: make([]TagCategory, 0, len(catalog.TagCategories)),
		Custom:     []string{},
	}
	for _, name := range catalog.TagCategoryNames() {
		resp.Categories = append(resp.Categories, TagCategory{Name: name, Tags: catalog.TagCategories[name]})
	}
	for _, tag := range c.QueryParams()["tag"] {
		if tag = strings.TrimSpace(tag); tag != "" && !catalog.IsKnownTag(tag) {
			resp.Custom = append(resp.Custom, tag)
		}
	}
	return c.JSON(http.StatusOK, resp)
}

// resourceQuery reads the grid query: kind (singular) or path ("/models/"),
// page (1-based), q (keywords) and repeated tag parameters.
func resourceQuery(c echo.Context) (browse.Query, error) {
	q := browse.Query{
		Page:     1,
		Keywords: strings.TrimSpace(c.QueryParam("q")),
		Tags:     c.QueryParams()["tag"],
	}

	switch kind, path := c.QueryParam("kind"), c.QueryParam("path"); {
	case kind != "":
		k, err := catalog.ParseKind(kind)
		if err != nil {
			return q, err
		}
		q.Kind = k
	case path != "":
		k, ok := catalog.KindFromPath(path)
		if !ok {
			return q, fmt.Errorf("path %q names no resource kind", path)
		}
		q.Kind = k
	}

	if raw := c.QueryParam("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, fmt.Errorf("invalid page %q", raw)
		}
		q.Page = page
	}
	return q, nil
}

// ResourceList is the body of /api/resources/?all=true.
type ResourceList struct {
	Items []catalog.ResourceItem `json:"items"`
	Total int                    `json:"total"`
}

func (s *Server) listResources(c echo.Context) error {
	q, err := resourceQuery(c)
	if err != nil {
		return badRequest(err)
	}

	if raw := c.QueryParam("all"); raw != "" {
		all, err := strconv.ParseBool(raw)
		if err != nil {
			return badRequest(fmt.Errorf("invalid all %q", raw))
		}
		if all {
			items, total, err := s.grid.All(c.Request().Context(), q)
			if err != nil {
				return upstreamError(err)
			}
			if items == nil {
				items = []catalog.ResourceItem{}
			}
			return c.JSON(http.StatusOK, ResourceList{Items: items, Total: total})
		}
	}

	page, err := s.grid.Page(c.Request().Context(), q)
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, page)
}

// resourceID is "workspace/alias" or a bare alias.
func resourceID(c echo.Context) string {
	if ws := c.Param("workspace"); ws != "" {
		return ws + "/" + c.Param("alias")
	}
	return c.Param("alias")
}

func (s *Server) getResource(c echo.Context) error {
	d, err := s.details.Load(c.Request().Context(), resourceID(c), c.QueryParam("version"))
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, d)
}

func (s *Server) getSource(c echo.Context) error {
	src, err := s.details.Source(c.Request().Context(), resourceID(c))
	if err != nil {
		return upstreamError(err)
	}
	return c.JSON(http.StatusOK, src)
}
