package devserver

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/goliatone/go-cmdbform/pkg/model"
)

func (s *Server) listTypes(c echo.Context) error {
	page, err := s.store.ListTypes(c.Request().Context(), model.ParseListParams(c.QueryParams()))
	if err != nil {
		return badFilter(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getType(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, err := s.store.GetType(c.Request().Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

func (s *Server) createType(c echo.Context) error {
	var t model.Type
	if err := c.Bind(&t); err != nil {
		return err
	}
	t.PublicID = 0
	if errs := t.Validate(s.registry.Checker()); len(errs) > 0 {
		return invalid(c, errs)
	}
	created, err := s.store.CreateType(c.Request().Context(), t)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateType(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var t model.Type
	if err := c.Bind(&t); err != nil {
		return err
	}
	t.PublicID = id
	if errs := t.Validate(s.registry.Checker()); len(errs) > 0 {
		return invalid(c, errs)
	}
	updated, err := s.store.UpdateType(c.Request().Context(), t)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteType(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.store.DeleteType(c.Request().Context(), id); err != nil {
		return storeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listCategories(c echo.Context) error {
	page, err := s.store.ListCategories(c.Request().Context(), model.ParseListParams(c.QueryParams()))
	if err != nil {
		return badFilter(err)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	category, err := s.store.GetCategory(c.Request().Context(), id)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, category)
}

func (s *Server) createCategory(c echo.Context) error {
	var category model.Category
	if err := c.Bind(&category); err != nil {
		return err
	}
	if !model.ValidName(category.Name) {
		return c.JSON(http.StatusUnprocessableEntity, map[string][]string{"name": {"invalid category name"}})
	}
	category.PublicID = 0
	created, err := s.store.CreateCategory(c.Request().Context(), category)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateCategory(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var category model.Category
	if err := c.Bind(&category); err != nil {
		return err
	}
	if !model.ValidName(category.Name) {
		return c.JSON(http.StatusUnprocessableEntity, map[string][]string{"name": {"invalid category name"}})
	}
	category.PublicID = id
	updated, err := s.store.UpdateCategory(c.Request().Context(), category)
	if err != nil {
		return storeError(c, err)
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) categoryTree(c echo.Context) error {
	tree, err := s.store.CategoryTree(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tree)
}

// listObjects accepts type_ids=2,3 and decorates every object with its
// summary line and type header.
func (s *Server) listObjects(c echo.Context) error {
	var typeIDs []int
	if raw := strings.TrimSpace(c.QueryParam("type_ids")); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.Atoi(strings.TrimSpace(part))
			if err != nil {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid type_ids")
			}
			typeIDs = append(typeIDs, id)
		}
	}
	ctx := c.Request().Context()
	page, err := s.store.ListObjects(ctx, typeIDs, model.ParseListParams(c.QueryParams()))
	if err != nil {
		return badFilter(err)
	}
	types := make(map[int]*model.Type)
	for i := range page.Results {
		obj := &page.Results[i]
		t, ok := types[obj.TypeID]
		if !ok {
			if loaded, err := s.store.GetType(ctx, obj.TypeID); err == nil {
				t = &loaded
			}
			types[obj.TypeID] = t
		}
		decorate(obj, t)
	}
	return c.JSON(http.StatusOK, page)
}

func (s *Server) getObject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	obj, err := s.store.GetObject(ctx, id)
	if err != nil {
		return storeError(c, err)
	}
	if t, err := s.store.GetType(ctx, obj.TypeID); err == nil {
		decorate(&obj, &t)
	}
	return c.JSON(http.StatusOK, obj)
}

func (s *Server) createObject(c echo.Context) error {
	var obj model.Object
	if err := c.Bind(&obj); err != nil {
		return err
	}
	obj.PublicID = 0
	return s.putObject(c, obj, http.StatusCreated)
}

func (s *Server) updateObject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	if _, err := s.store.GetObject(ctx, id); err != nil {
		return storeError(c, err)
	}
	var obj model.Object
	if err := c.Bind(&obj); err != nil {
		return err
	}
	obj.PublicID = id
	return s.putObject(c, obj, http.StatusOK)
}

func (s *Server) putObject(c echo.Context, obj model.Object, status int) error {
	ctx := c.Request().Context()
	t, err := s.store.GetType(ctx, obj.TypeID)
	if err != nil {
		return c.JSON(http.StatusUnprocessableEntity, map[string][]string{"type_id": {"unknown type"}})
	}
	if payload := s.validateObject(t, obj); len(payload) > 0 {
		return c.JSON(http.StatusUnprocessableEntity, map[string]any{"errors": payload})
	}
	obj.SummaryLine = ""
	obj.TypeInformation = nil
	saved, err := s.store.PutObject(ctx, obj)
	if err != nil {
		return storeError(c, err)
	}
	decorate(&saved, &t)
	return c.JSON(status, saved)
}

func (s *Server) deleteObject(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if err := s.store.DeleteObject(c.Request().Context(), id); err != nil {
		return storeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listGroups(c echo.Context) error {
	groups, err := s.store.ListGroups(c.Request().Context())
	if err != nil {
		return err
	}
	if groups == nil {
		groups = []model.Group{}
	}
	return c.JSON(http.StatusOK, groups)
}

func decorate(obj *model.Object, t *model.Type) {
	if t == nil {
		return
	}
	obj.SummaryLine = t.SummaryLine(*obj)
	obj.TypeInformation = &model.TypeInformation{
		TypeID:    t.PublicID,
		TypeName:  t.Name,
		TypeLabel: t.Label,
		Icon:      t.RenderMeta.Icon,
	}
}

func badFilter(err error) error {
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}
