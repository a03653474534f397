package settlement

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/paystream/settlement-api/internal/auth"
	"github.com/paystream/settlement-api/internal/escrow"
	"github.com/paystream/settlement-api/internal/idempotency"
	"github.com/paystream/settlement-api/internal/ledger"
	"github.com/paystream/settlement-api/internal/types"
	"github.com/paystream/settlement-api/pkg/response"
	"gorm.io/gorm"
)

// Service orchestrates earning releases: idempotency guard, eligibility
// checks, escrow guard, ledger posting, and the status transition.
type Service struct {
	gormDB            *gorm.DB
	db                *Database
	guard             *idempotency.Guard
	escrowGuard       escrow.Guard
	ledger            *ledger.Service
	platformCompanyID string
}

func NewService(gormDB *gorm.DB, escrowGuard escrow.Guard, ledgerService *ledger.Service, platformCompanyID string) *Service {
	return &Service{
		gormDB:            gormDB,
		db:                NewDatabase(gormDB),
		guard:             idempotency.NewGuard(),
		escrowGuard:       escrowGuard,
		ledger:            ledgerService,
		platformCompanyID: platformCompanyID,
	}
}

// GetEarning retrieves an earning by ID
func (s *Service) GetEarning(earningID string) (*types.Earning, error) {
	return s.db.GetEarning(earningID)
}

// GetEarningsBySeller retrieves all earnings for a seller company
func (s *Service) GetEarningsBySeller(sellerCompanyID string) ([]types.Earning, error) {
	return s.db.GetEarningsBySeller(sellerCompanyID)
}

// GetDB exposes the database wrapper for the simulation and tests.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for settlement endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// ReleaseEarningHandler handles POST requests to release a single
// earning. Requires internal authentication.
// URL parameter: earning_id
func (h *GinHandlers) ReleaseEarningHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		earningID := c.Param("earning_id")

		if err := h.service.Release(earningID); err != nil {
			response.Handle(c, nil, err)
			return
		}

		response.Success(c, ReleaseResponse{
			EarningID: earningID,
			Status:    string(types.EarningStatusReleased),
			Timestamp: time.Now(),
		})
	}
}

// RunReleaseCycleHandler handles POST requests to trigger one batch
// release sweep. Requires internal authentication.
func (h *GinHandlers) RunReleaseCycleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var request struct {
			BatchSize int `json:"batch_size"`
		}
		// Body is optional; defaults apply when absent.
		_ = c.ShouldBindJSON(&request)

		metrics := h.service.RunReleaseCycle(CycleOptions{
			BatchSize: request.BatchSize,
		})

		response.Success(c, metrics)
	}
}

// GetEarningHandler handles GET requests for a single earning.
// Requires a valid JWT token; sellers can only read their own earnings.
// URL parameter: earning_id
func (h *GinHandlers) GetEarningHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		companyID := auth.GetCompanyID(claims)
		if companyID == "" {
			response.Unauthorized(c, "Invalid company ID in token")
			return
		}

		earningID := c.Param("earning_id")
		earning, err := h.service.GetEarning(earningID)
		if err != nil || earning == nil || earning.SellerCompanyID != companyID {
			response.NotFound(c, "Earning not found")
			return
		}

		response.Success(c, earning)
	}
}

// ListEarningsHandler handles GET requests listing the authenticated
// seller's earnings.
func (h *GinHandlers) ListEarningsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, exists := c.Get("claims")
		if !exists {
			response.Unauthorized(c, "Missing authentication claims")
			return
		}

		companyID := auth.GetCompanyID(claims)
		if companyID == "" {
			response.Unauthorized(c, "Invalid company ID in token")
			return
		}

		earnings, err := h.service.GetEarningsBySeller(companyID)
		response.Handle(c, earnings, err)
	}
}
