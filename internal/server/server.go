package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/telecoop/backoffice/internal/auth"
	authdomain "github.com/telecoop/backoffice/internal/auth/domain"
	"github.com/telecoop/backoffice/internal/auth/session"
	"github.com/telecoop/backoffice/internal/authorization"
	"github.com/telecoop/backoffice/internal/client"
	clientdomain "github.com/telecoop/backoffice/internal/client/domain"
	"github.com/telecoop/backoffice/internal/config"
	"github.com/telecoop/backoffice/internal/invoice"
	invoicedomain "github.com/telecoop/backoffice/internal/invoice/domain"
	"github.com/telecoop/backoffice/internal/napbox"
	napboxdomain "github.com/telecoop/backoffice/internal/napbox/domain"
	"github.com/telecoop/backoffice/internal/observability"
	obslogger "github.com/telecoop/backoffice/internal/observability/logger"
	obsmetrics "github.com/telecoop/backoffice/internal/observability/metrics"
	obstracing "github.com/telecoop/backoffice/internal/observability/tracing"
	"github.com/telecoop/backoffice/internal/payment"
	paymentdomain "github.com/telecoop/backoffice/internal/payment/domain"
	"github.com/telecoop/backoffice/internal/plan"
	plandomain "github.com/telecoop/backoffice/internal/plan/domain"
	"github.com/telecoop/backoffice/internal/providers"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	authorization.Module,
	auth.Module,
	providers.Module,
	client.Module,
	plan.Module,
	napbox.Module,
	invoice.Module,
	payment.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	genID      *snowflake.Node
	sessions   *session.Manager
	authsvc    authdomain.Service
	authzSvc   authorization.Service
	clientSvc  clientdomain.Service
	planSvc    plandomain.Service
	napboxSvc  napboxdomain.Service
	invoiceSvc invoicedomain.Service
	paymentSvc paymentdomain.Service
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	GenID      *snowflake.Node
	Sessions   *session.Manager
	Authsvc    authdomain.Service
	AuthzSvc   authorization.Service
	ClientSvc  clientdomain.Service
	PlanSvc    plandomain.Service
	NapboxSvc  napboxdomain.Service
	InvoiceSvc invoicedomain.Service
	PaymentSvc paymentdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		genID:      p.GenID,
		sessions:   p.Sessions,
		authsvc:    p.Authsvc,
		authzSvc:   p.AuthzSvc,
		clientSvc:  p.ClientSvc,
		planSvc:    p.PlanSvc,
		napboxSvc:  p.NapboxSvc,
		invoiceSvc: p.InvoiceSvc,
		paymentSvc: p.PaymentSvc,
	}

	svc.registerAuthRoutes()
	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAuthRoutes() {
	auth := s.engine.Group("/internal/auth")

	auth.POST("/send-otp", s.SendOTP)
	auth.POST("/verify-otp", s.VerifyOTP)
	auth.POST("/logout", s.Logout)
	auth.GET("/me", s.AuthRequired(), s.Me)
	auth.POST("/change-password", s.AuthRequired(), s.ChangePassword)
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api", s.AuthRequired())

	// -------- Clients --------
	api.GET("/clients", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientView), s.ListClients)
	api.POST("/clients", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientCreate), s.CreateClient)
	api.GET("/clients/stats", s.authorizeAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetClientStats)
	api.GET("/clients/:id", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientView), s.GetClientByID)
	api.PATCH("/clients/:id", s.authorizeAction(authorization.ObjectClient, authorization.ActionClientUpdate), s.UpdateClient)

	// -------- Plans --------
	api.GET("/plans", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanView), s.ListPlans)
	api.POST("/plans", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanCreate), s.CreatePlan)
	api.GET("/plans/:id", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanView), s.GetPlanByID)
	api.PATCH("/plans/:id", s.authorizeAction(authorization.ObjectPlan, authorization.ActionPlanUpdate), s.UpdatePlan)

	// -------- NAP boxes --------
	api.GET("/napboxes", s.authorizeAction(authorization.ObjectNapbox, authorization.ActionNapboxView), s.ListNapboxes)
	api.POST("/napboxes", s.authorizeAction(authorization.ObjectNapbox, authorization.ActionNapboxCreate), s.CreateNapbox)
	api.GET("/napboxes/:id", s.authorizeAction(authorization.ObjectNapbox, authorization.ActionNapboxView), s.GetNapboxByID)
	api.PATCH("/napboxes/:id", s.authorizeAction(authorization.ObjectNapbox, authorization.ActionNapboxUpdate), s.UpdateNapbox)

	// -------- Billing --------
	api.GET("/billing", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListInvoices)
	api.GET("/billing/invoices/:id", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.GetInvoiceByID)
	api.GET("/billing/check-reference", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.CheckInvoiceReference)
	api.GET("/billing/invoice-pdf/:id", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceDownload), s.DownloadInvoicePDF)
	api.POST("/billing/mark-as-paid", s.authorizeAction(authorization.ObjectPayment, authorization.ActionPaymentRecord), s.MarkInvoicePaid)
	api.GET("/billing/payment-history", s.authorizeAction(authorization.ObjectInvoice, authorization.ActionInvoiceView), s.ListPayments)
	api.GET("/billing/revenue", s.authorizeAction(authorization.ObjectDashboard, authorization.ActionDashboardView), s.GetRevenue)
}
