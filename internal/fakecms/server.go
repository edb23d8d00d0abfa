package fakecms

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/connection"
	"github.com/marcelofinamorvieira/datocms-plugin-block-to-links/pkg/models"
)

// Server serves a Store over the REST interface connection.HTTPConnection
// speaks. Requests must carry "Authorization: Bearer <Token>".
type Server struct {
	Store *Store
	Token string

	router *mux.Router
}

func NewServer(store *Store, token string) *Server {
	s := &Server{Store: store, Token: token}

	router := mux.NewRouter()
	router.Use(s.authenticate)
	router.HandleFunc("/site", s.handleSite).Methods(http.MethodGet)
	router.HandleFunc("/item-types", s.handleListItemTypes).Methods(http.MethodGet)
	router.HandleFunc("/item-types", s.handleCreateItemType).Methods(http.MethodPost)
	router.HandleFunc("/item-types/{id}", s.handleUpdateItemType).Methods(http.MethodPut)
	router.HandleFunc("/item-types/{id}", s.handleDestroyItemType).Methods(http.MethodDelete)
	router.HandleFunc("/item-types/{id}/fields", s.handleListFields).Methods(http.MethodGet)
	router.HandleFunc("/item-types/{id}/fields", s.handleCreateField).Methods(http.MethodPost)
	router.HandleFunc("/fields/{id}", s.handleUpdateField).Methods(http.MethodPut)
	router.HandleFunc("/fields/{id}", s.handleDestroyField).Methods(http.MethodDelete)
	router.HandleFunc("/items", s.handleListItems).Methods(http.MethodGet)
	router.HandleFunc("/items", s.handleCreateItem).Methods(http.MethodPost)
	router.HandleFunc("/items/{id}", s.handleUpdateItem).Methods(http.MethodPut)
	s.router = router

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.Token {
			respondError(w, &Error{Status: http.StatusUnauthorized, Code: "INVALID_AUTHORIZATION_HEADER", Message: "missing or invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSite(w http.ResponseWriter, r *http.Request) {
	locales, _ := s.Store.ListLocales(r.Context())
	respondData(w, http.StatusOK, models.Site{Locales: locales})
}

func (s *Server) handleListItemTypes(w http.ResponseWriter, r *http.Request) {
	itemTypes, _ := s.Store.ListItemTypes(r.Context())
	respondData(w, http.StatusOK, itemTypes)
}

func (s *Server) handleCreateItemType(w http.ResponseWriter, r *http.Request) {
	var itemType models.ItemType
	if !decodeData(w, r, &itemType) {
		return
	}
	created, err := s.Store.CreateItemType(r.Context(), itemType)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateItemType(w http.ResponseWriter, r *http.Request) {
	var itemType models.ItemType
	if !decodeData(w, r, &itemType) {
		return
	}
	itemType.ID = mux.Vars(r)["id"]
	updated, err := s.Store.UpdateItemType(r.Context(), itemType)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

func (s *Server) handleDestroyItemType(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DestroyItemType(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	fields, err := s.Store.ListFields(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		respondError(w, err)
		return
	}
	if fields == nil {
		fields = []models.Field{}
	}
	respondData(w, http.StatusOK, fields)
}

func (s *Server) handleCreateField(w http.ResponseWriter, r *http.Request) {
	var field models.Field
	if !decodeData(w, r, &field) {
		return
	}
	created, err := s.Store.CreateField(r.Context(), mux.Vars(r)["id"], field)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateField(w http.ResponseWriter, r *http.Request) {
	var field models.Field
	if !decodeData(w, r, &field) {
		return
	}
	field.ID = mux.Vars(r)["id"]
	updated, err := s.Store.UpdateField(r.Context(), field)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

func (s *Server) handleDestroyField(w http.ResponseWriter, r *http.Request) {
	if err := s.Store.DestroyField(r.Context(), mux.Vars(r)["id"]); err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, nil)
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := connection.ItemQuery{
		TypeID: query.Get("filter[type]"),
		Nested: query.Get("nested") == "true",
	}
	offset, _ := strconv.Atoi(query.Get("page[offset]"))
	limit, err := strconv.Atoi(query.Get("page[limit]"))
	if err != nil || limit <= 0 {
		limit = 30
	}

	var all []models.Item
	err = s.Store.EachItem(r.Context(), q, func(item models.Item) error {
		all = append(all, item)
		return nil
	})
	if err != nil {
		respondError(w, err)
		return
	}

	page := []models.Item{}
	if offset < len(all) {
		page = all[offset:min(offset+limit, len(all))]
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"data": page,
		"meta": map[string]any{"total_count": len(all)},
	})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if !decodeData(w, r, &item) {
		return
	}
	created, err := s.Store.CreateItem(r.Context(), item)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateItem(w http.ResponseWriter, r *http.Request) {
	var item models.Item
	if !decodeData(w, r, &item) {
		return
	}
	updated, err := s.Store.UpdateItem(r.Context(), mux.Vars(r)["id"], item.Attributes)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, updated)
}

func decodeData(w http.ResponseWriter, r *http.Request, dst any) bool {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&envelope); err != nil || len(envelope.Data) == 0 {
		respondError(w, &Error{Status: http.StatusBadRequest, Code: "INVALID_FORMAT", Message: "request body must be a data envelope"})
		return false
	}
	if err := json.Unmarshal(envelope.Data, dst); err != nil {
		respondError(w, &Error{Status: http.StatusBadRequest, Code: "INVALID_FORMAT", Message: err.Error()})
		return false
	}
	return true
}

func respondData(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, map[string]any{"data": data})
}

func respondError(w http.ResponseWriter, err error) {
	apiErr := &Error{Status: http.StatusInternalServerError, Code: "INTERNAL_ERROR", Message: err.Error()}
	var storeErr *Error
	if errors.As(err, &storeErr) {
		apiErr = storeErr
	}
	respondJSON(w, apiErr.Status, map[string]any{
		"errors": []map[string]any{{"code": apiErr.Code, "message": apiErr.Message}},
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
