package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/grubsquad/grubsquad-backend/api/controllers"
	cartcontrollers "github.com/grubsquad/grubsquad-backend/api/controllers/carts"
	"github.com/grubsquad/grubsquad-backend/api/middleware"
	cartsvc "github.com/grubsquad/grubsquad-backend/internal/carts"
	"github.com/grubsquad/grubsquad-backend/pkg/config"
	"github.com/grubsquad/grubsquad-backend/pkg/db"
	"github.com/grubsquad/grubsquad-backend/pkg/logger"
	gsredis "github.com/grubsquad/grubsquad-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *gsredis.Client,
	cartService cartsvc.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Route("/api/v1/carts", func(r chi.Router) {
		r.Post("/", cartcontrollers.CartEnsure(cartService, logg))
		r.Get("/", cartcontrollers.CartList(cartService, logg))

		r.Route("/{cartID}", func(r chi.Router) {
			r.Get("/", cartcontrollers.CartFetch(cartService, logg))
			r.Delete("/", cartcontrollers.CartDelete(cartService, logg))
			r.Post("/submit", cartcontrollers.CartSubmit(cartService, logg))
			r.Put("/fulfillment", cartcontrollers.CartFulfillmentUpsert(cartService, logg))
			r.Post("/join", cartcontrollers.CartJoin(cartService, logg))
			if cfg.FeatureFlags.RealtimeUpdates {
				r.Get("/events", cartcontrollers.CartEvents(cartService, logg))
			}

			r.Route("/items", func(r chi.Router) {
				r.Post("/", cartcontrollers.CartItemAdd(cartService, logg))
				r.Patch("/{itemID}", cartcontrollers.CartItemUpdate(cartService, logg))
				r.Delete("/{itemID}", cartcontrollers.CartItemRemove(cartService, logg))
			})
		})
	})

	return r
}
