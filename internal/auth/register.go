package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/httpx"
	"github.com/tap2go/tap2go/internal/ledger"
)

type StudentSignup struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
	Matric   string `json:"matric"`
}

type DriverSignup struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	Name         string `json:"name"`
	LicensePlate string `json:"licensePlate"`
	PhoneNumber  string `json:"phoneNumber"`
}

type RegisterResponse struct {
	UID string `json:"uid"`
}

// RegisterStudent creates the credential and then a zero-balance student account.
func (s *Service) RegisterStudent(ctx context.Context, in StudentSignup) (string, error) {
	if blank(in.Email, in.Password, in.Name, in.Matric) {
		return "", ledger.ErrInvalidInput
	}
	return s.register(ctx, in.Email, in.Password, in.Name, func(uid string, q ledger.Queries) error {
		return q.CreateAccount(ctx, ledger.Account{
			ID:        uid,
			Role:      ledger.RoleStudent,
			Email:     normalizeEmail(in.Email),
			Name:      strings.TrimSpace(in.Name),
			Matric:    strings.TrimSpace(in.Matric),
			CreatedAt: s.clock.Now(),
		})
	})
}

// RegisterDriver creates a driver account with an empty bank profile.
func (s *Service) RegisterDriver(ctx context.Context, in DriverSignup) (string, error) {
	if blank(in.Email, in.Password, in.Name, in.LicensePlate, in.PhoneNumber) {
		return "", ledger.ErrInvalidInput
	}
	return s.register(ctx, in.Email, in.Password, in.Name, func(uid string, q ledger.Queries) error {
		now := s.clock.Now()
		if err := q.CreateAccount(ctx, ledger.Account{
			ID:           uid,
			Role:         ledger.RoleDriver,
			Email:        normalizeEmail(in.Email),
			Name:         strings.TrimSpace(in.Name),
			LicensePlate: strings.TrimSpace(in.LicensePlate),
			PhoneNumber:  strings.TrimSpace(in.PhoneNumber),
			CreatedAt:    now,
		}); err != nil {
			return err
		}
		return q.UpsertBankProfile(ctx, ledger.BankProfile{AccountID: uid, UpdatedAt: now})
	})
}

// register removes the credential again when the account rows cannot be written.
func (s *Service) register(ctx context.Context, email, password, name string, create func(uid string, q ledger.Queries) error) (string, error) {
	rec, err := s.provider.CreateUser(ctx, NewUser{Email: email, Password: password, DisplayName: strings.TrimSpace(name)})
	if err != nil {
		return "", err
	}
	err = s.store.WithTx(ctx, func(q ledger.Queries) error {
		return create(rec.UID, q)
	})
	if err != nil {
		if derr := s.provider.DeleteUser(ctx, rec.UID); derr != nil {
			return "", ledger.Upstream("register", derr)
		}
		return "", ledger.Upstream("register", err)
	}
	return rec.UID, nil
}

// Handler serves the auth routes.
type Handler struct {
	svc *Service
	log *zap.Logger
}

func NewHandler(svc *Service, log *zap.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

func (h *Handler) Register(c echo.Context) error {
	req := new(StudentSignup)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	uid, err := h.svc.RegisterStudent(c.Request().Context(), *req)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.log.Info("student registered", zap.String("account_id", uid))
	return c.JSON(http.StatusCreated, RegisterResponse{UID: uid})
}

func (h *Handler) RegisterDriver(c echo.Context) error {
	req := new(DriverSignup)
	if err := httpx.Bind(c, req); err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	uid, err := h.svc.RegisterDriver(c.Request().Context(), *req)
	if err != nil {
		return httpx.WriteError(c, h.log, err)
	}
	h.log.Info("driver registered", zap.String("account_id", uid))
	return c.JSON(http.StatusCreated, RegisterResponse{UID: uid})
}
