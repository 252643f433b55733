package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/jusegoram/react-apollo-ccs-desk/modules/fieldops/services"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/application"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/composables"
	"github.com/jusegoram/react-apollo-ccs-desk/pkg/httpapi"
)

type ImportsController struct {
	imports  *services.DataImportService
	basePath string
}

func NewImportsController(app application.Application) application.Controller {
	return &ImportsController{
		imports:  app.Service(services.DataImportService{}).(*services.DataImportService),
		basePath: "/imports",
	}
}

func (c *ImportsController) Key() string {
	return c.basePath
}

func (c *ImportsController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.HandleFunc("", c.List).Methods(http.MethodGet)
	router.HandleFunc("/{id}", c.Get).Methods(http.MethodGet)
}

func (c *ImportsController) List(w http.ResponseWriter, r *http.Request) {
	var filter services.DataImportFilter
	q := r.URL.Query()
	if v := strings.TrimSpace(q.Get("dataSource")); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORTS_INVALID_QUERY", "dataSource must be a uuid", nil)
			return
		}
		filter.DataSourceID = &id
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORTS_INVALID_QUERY", "limit must be a positive integer", nil)
			return
		}
		filter.Limit = limit
	}

	items, err := c.imports.List(r.Context(), filter)
	if err != nil {
		composables.UseLogger(r.Context()).WithError(err).Error("list imports")
		_ = httpapi.WriteErr(w, err, "IMPORTS_INTERNAL")
		return
	}
	_ = httpapi.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (c *ImportsController) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		_ = httpapi.WriteError(w, http.StatusBadRequest, "IMPORTS_INVALID_ID", "id must be a uuid", nil)
		return
	}
	di, err := c.imports.Get(r.Context(), id)
	switch {
	case errors.Is(err, services.ErrNotFound):
		_ = httpapi.WriteError(w, http.StatusNotFound, "IMPORTS_NOT_FOUND", "import not found", nil)
	case err != nil:
		composables.UseLogger(r.Context()).WithError(err).Error("get import")
		_ = httpapi.WriteErr(w, err, "IMPORTS_INTERNAL")
	default:
		_ = httpapi.WriteJSON(w, http.StatusOK, di)
	}
}
