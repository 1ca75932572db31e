package main

import (
	"log"
	"strings"

	"emlak-backend/internal/admin"
	"emlak-backend/internal/audit"
	"emlak-backend/internal/auth"
	"emlak-backend/internal/config"
	"emlak-backend/internal/dashboard"
	"emlak-backend/internal/database"
	"emlak-backend/internal/models"
	"emlak-backend/internal/prim"
	"emlak-backend/internal/sales"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Satışlar
	protected.Post("/sales", sales.CreateSaleHandler())
	protected.Get("/sales", sales.ListSalesHandler())
	protected.Get("/sales/:id", sales.GetSaleHandler())
	protected.Put("/sales/:id", sales.UpdateSaleHandler())
	protected.Post("/sales/:id/cancel", sales.CancelSaleHandler())

	// Prim defteri & hakediş
	protected.Get("/prims/earnings", prim.EarningsHandler())
	protected.Get("/prims/transactions", prim.ListTransactionsHandler())

	// Dashboard
	protected.Get("/dashboard/prim-chart", dashboard.PrimChartHandler())

	// Admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Satış yaşam döngüsü (yalnız admin)
	protected.Post("/sales/:id/restore", auth.RequireRole(models.RoleAdmin), sales.RestoreSaleHandler())
	protected.Post("/sales/:id/transfer", auth.RequireRole(models.RoleAdmin), sales.TransferSaleHandler())
	protected.Post("/sales/:id/reassign-period", auth.RequireRole(models.RoleAdmin), sales.ReassignPeriodHandler())
	protected.Patch("/sales/:id/prim-status", auth.RequireRole(models.RoleAdmin), sales.SetPrimStatusHandler())

	// Prim oranı yönetimi
	adminRoutes.Post("/prim-rates", admin.CreateRateHandler())
	adminRoutes.Get("/prim-rates", admin.ListRatesHandler())
	adminRoutes.Post("/prim-rates/:id/activate", admin.ActivateRateHandler())

	// Dönemler
	adminRoutes.Get("/prim-periods", admin.ListPeriodsHandler())

	// Kullanıcı yönetimi
	adminRoutes.Post("/users", admin.CreateUserHandler())
	adminRoutes.Get("/users", admin.ListUsersHandler())
	adminRoutes.Patch("/users/:id/active", admin.SetUserActiveHandler())

	// Onarım işlemleri
	adminRoutes.Post("/reconcile/recompute", prim.RecomputeHandler())
	adminRoutes.Post("/reconcile/dedupe", prim.DedupeHandler())
	adminRoutes.Post("/reconcile/realign", prim.RealignHandler())

	// Audit logs
	adminRoutes.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
