// ABOUTME: Builds the chi router for the funnel JSON API, websocket stream, and health check.
// ABOUTME: Middleware order is request id, recovery, logging, CORS, then bearer auth.
package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/2389-research/funnel/board/server"
)

// RouterOptions configures the cross-cutting middleware.
type RouterOptions struct {
	AuthToken   string
	CORSOrigins []string
}

// NewRouter returns the HTTP handler for state.
func NewRouter(state *server.AppState, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(zap.L().With(zap.String("component", "board.web"))))
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   opts.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}).Handler)
	r.Use(server.AuthMiddleware(opts.AuthToken))

	r.Get("/health", Health(state))

	r.Route("/api/workspaces", func(r chi.Router) {
		r.Get("/", ListWorkspaces(state))
		r.Post("/", CreateWorkspace(state))

		r.Route("/{ws}", func(r chi.Router) {
			r.Get("/", GetWorkspace(state))
			r.Get("/ws", Stream(state))
			r.Post("/commands", Commands(state))
			r.Get("/events", Events(state))
			r.Get("/deliveries", Deliveries(state))

			r.Get("/tags", ListTags(state))
			r.Post("/tags", CreateTag(state))
			r.Patch("/tags/{tag}", UpdateTag(state))
			r.Delete("/tags/{tag}", DeleteTag(state))

			r.Get("/integrations", ListIntegrations(state))
			r.Post("/integrations", CreateIntegration(state))
			r.Delete("/integrations/{integration}", DeleteIntegration(state))
			r.Post("/integrations/{integration}/ping", PingIntegration(state))

			r.Get("/boards", ListBoards(state))
			r.Post("/boards", CreateBoard(state))
			r.Route("/boards/{board}", func(r chi.Router) {
				r.Get("/", GetBoard(state))
				r.Patch("/", UpdateBoard(state))
				r.Delete("/", DeleteBoard(state))
				r.Get("/export", ExportBoard(state))
				r.Put("/completed", SetCompletedList(state))

				r.Post("/lists", CreateList(state))
				r.Post("/lists/reorder", ReorderLists(state))
				r.Patch("/lists/{list}", UpdateList(state))
				r.Delete("/lists/{list}", DeleteList(state))
				r.Post("/lists/{list}/cards", CreateCard(state))
				r.Post("/lists/{list}/cards/reorder", ReorderCards(state))

				r.Get("/cards/{card}", GetCard(state))
				r.Patch("/cards/{card}", EditCard(state))
				r.Delete("/cards/{card}", DeleteCard(state))
				r.Post("/cards/{card}/move", MoveCard(state))

				r.Get("/drag", GetDrag(state))
				r.Post("/drag/start", DragStart(state))
				r.Post("/drag/over", DragOver(state))
				r.Post("/drag/end", DragEnd(state))

				r.Get("/automations", ListAutomations(state))
				r.Post("/automations", SaveAutomation(state))
				r.Put("/automations/{automation}", SaveAutomation(state))
				r.Delete("/automations/{automation}", DeleteAutomation(state))
				r.Post("/automations/{automation}/active", SetAutomationActive(state))
			})
		})
	})

	return r
}
