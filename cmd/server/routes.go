package main

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tap2go/tap2go/internal/admin"
	"github.com/tap2go/tap2go/internal/auth"
	"github.com/tap2go/tap2go/internal/driver"
	mw "github.com/tap2go/tap2go/internal/middleware"
	"github.com/tap2go/tap2go/internal/telegram"
	"github.com/tap2go/tap2go/internal/user"
	"github.com/tap2go/tap2go/internal/wallet"
)

func (a *app) routes(e *echo.Echo) {
	log := a.log
	require := func(access mw.Access) echo.MiddlewareFunc { return mw.Require(access, log) }

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		if err := a.ready(c.Request().Context()); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	if a.bot != nil {
		e.POST("/bot/webhook", telegram.Webhook(a.bot, a.cfg.TelegramWebhookSecret, log.Named("telegram")))
	}

	api := e.Group("")
	api.Use(mw.Authenticate(a.auth.Tokens(), log))

	authH := auth.NewHandler(a.auth, log)
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(20)))
	authGroup.POST("/register", authH.Register, require(mw.Guest))
	authGroup.POST("/driver/register", authH.RegisterDriver, require(mw.Guest))
	authGroup.POST("/login", authH.Login, require(mw.Guest))
	authGroup.POST("/admin/bootstrap", authH.BootstrapAdmin, require(mw.Public))
	authGroup.GET("/me", authH.Me, require(mw.Authenticated))

	userH := user.NewHandler(a.ledger, log)
	api.GET("/user/:id/profile", userH.GetPublicProfile, require(mw.Authenticated))
	api.PATCH("/user/profile", userH.UpdateProfile, require(mw.Authenticated))

	walletH := wallet.NewHandler(wallet.Deps{
		Ledger:   a.ledger,
		Events:   a.events,
		Notifier: a.notifier,
		Metrics:  a.metrics,
		Log:      log,
	})
	api.GET("/wallet/balance", walletH.Balance, require(mw.Authenticated))
	api.GET("/wallet/transactions", walletH.Transactions, require(mw.Authenticated))
	api.POST("/rides/fare", walletH.PayFare, require(mw.Student))
	api.POST("/withdrawal/request", walletH.RequestWithdrawal, require(mw.Driver))
	api.GET("/withdrawal/requests", walletH.MyWithdrawals, require(mw.Driver))

	driverH := driver.NewHandler(driver.Deps{
		Ledger:   a.ledger,
		Events:   a.events,
		Notifier: a.notifier,
		Metrics:  a.metrics,
		Log:      log,
	})
	driverGroup := api.Group("/driver", require(mw.Driver))
	driverGroup.POST("/statement", driverH.GenerateStatement)
	driverGroup.GET("/profile/bank", driverH.BankProfile)
	driverGroup.PUT("/profile/bank", driverH.UpdateBankProfile)
	driverGroup.POST("/report-issue", driverH.ReportIssue)

	tgH := telegram.NewHandler(a.linker, log)
	api.POST("/telegram/link-token", tgH.IssueLinkToken, require(mw.Authenticated))
	api.DELETE("/telegram/link", tgH.Unlink, require(mw.Authenticated))

	adminH := admin.NewHandler(a.ledger, log)
	adminGroup := api.Group("/admin", require(mw.Admin))
	adminGroup.GET("/accounts", adminH.ListAccounts)
	adminGroup.GET("/stats", adminH.Stats)
	adminGroup.GET("/withdrawals/pending", walletH.ListPendingWithdrawals)
	adminGroup.POST("/withdrawals/:id/paid", walletH.MarkWithdrawalPaid)
	adminGroup.POST("/withdrawals/:id/reject", walletH.RejectWithdrawal)
	adminGroup.POST("/accounts/:id/topup", walletH.AdminTopUp)
	adminGroup.GET("/transactions/user/:id", walletH.AdminUserTransactions)
}
