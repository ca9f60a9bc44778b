package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"

	"github.com/ghuser/retailstock/pkg/app"
	"github.com/ghuser/retailstock/pkg/auth"
	"github.com/ghuser/retailstock/pkg/logger"
	"github.com/ghuser/retailstock/services/inventory/application/handlers"
	appsvcs "github.com/ghuser/retailstock/services/inventory/application/services"
)

// InventoryRoutes registers inventory endpoints on the provided chi router.
func InventoryRoutes(r chi.Router, a *app.Application, svcs *appsvcs.Services) {
	Mount(r, svcs, a.SessionStore, a.Logger)
}

// Mount registers the routes against explicit collaborators. Login is the
// only endpoint reachable without a session.
func Mount(r chi.Router, svcs *appsvcs.Services, store sessions.Store, log logger.Logger) {
	authH := handlers.NewAuthHandler(svcs, store, log)
	catalog := handlers.NewCatalogHandler(svcs, log)
	stock := handlers.NewStockHandler(svcs, log)
	sales := handlers.NewSaleHandler(svcs, log)
	members := handlers.NewMemberHandler(svcs, log)
	checks := handlers.NewCheckHandler(svcs, log)
	opLogs := handlers.NewOperationLogHandler(svcs, log)

	r.Post("/auth/login", authH.Login)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireAuth(store, log))

		r.Post("/auth/logout", authH.Logout)
		r.Get("/auth/me", authH.Me)
		r.Post("/operators", authH.CreateOperator)

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", catalog.ListCategories)
			r.Post("/", catalog.CreateCategory)
		})
		r.Route("/products", func(r chi.Router) {
			r.Get("/", catalog.ListProducts)
			r.Post("/", catalog.CreateProduct)
			r.Get("/barcode/{code}", catalog.GetByBarcode)
			r.Get("/{id}", catalog.GetProduct)
			r.Patch("/{id}", catalog.UpdateProduct)
			r.Post("/{id}/deactivate", catalog.Deactivate)
			r.Post("/{id}/activate", catalog.Activate)
		})
		r.Get("/barcode/{code}/lookup", catalog.LookupBarcode)

		r.Route("/stock", func(r chi.Router) {
			r.Get("/low", stock.Low)
			r.Get("/value", stock.Value)
			r.Get("/export", stock.Export)
			r.Post("/movements", stock.ApplyMovement)
			r.Get("/movements", stock.ListMovements)
			r.Get("/{productID}", stock.Get)
			r.Get("/{productID}/sufficient", stock.Sufficient)
			r.Put("/{productID}/warning-level", stock.SetWarningLevel)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Post("/", sales.Create)
			r.Get("/", sales.List)
			r.Get("/{id}", sales.Get)
			r.Post("/{id}/items", sales.AddItem)
			r.Delete("/{id}/items/{itemID}", sales.RemoveItem)
			r.Post("/{id}/complete", sales.Complete)
			r.Post("/{id}/cancel", sales.Cancel)
		})

		r.Route("/member-levels", func(r chi.Router) {
			r.Get("/", members.ListLevels)
			r.Post("/", members.CreateLevel)
		})
		r.Route("/members", func(r chi.Router) {
			r.Get("/", members.List)
			r.Post("/", members.Create)
			r.Get("/{id}", members.Get)
			r.Patch("/{id}", members.Update)
			r.Post("/{id}/recharge", members.Recharge)
			r.Post("/{id}/points", members.AdjustPoints)
			r.Get("/{id}/transactions", members.Transactions)
		})

		r.Route("/inventory-checks", func(r chi.Router) {
			r.Post("/", checks.Create)
			r.Get("/", checks.List)
			r.Get("/{id}", checks.Get)
			r.Get("/{id}/summary", checks.Summary)
			r.Get("/{id}/export", checks.Export)
			r.Post("/{id}/start", checks.Start)
			r.Post("/{id}/complete", checks.Complete)
			r.Post("/{id}/approve", checks.Approve)
			r.Post("/{id}/cancel", checks.Cancel)
			r.Put("/{id}/items/{itemID}", checks.RecordCount)
		})

		r.Get("/operation-logs", opLogs.List)
	})
}
