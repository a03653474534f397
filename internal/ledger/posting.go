package ledger

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/paystream/settlement-api/internal/auth"
	"github.com/paystream/settlement-api/internal/types"
	"github.com/paystream/settlement-api/pkg/errs"
	"github.com/paystream/settlement-api/pkg/response"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Service posts balanced ledger groups across tenant scopes.
type Service struct {
	db                *Database
	platformCompanyID string
}

func NewService(gormDB *gorm.DB, platformCompanyID string) *Service {
	return &Service{
		db:                NewDatabase(gormDB),
		platformCompanyID: platformCompanyID,
	}
}

// ReleasePosting carries the computed amount split for one earning
// release. Net = Gross - Commission - Chargeback; the identity is
// enforced upstream and consumed as given.
type ReleasePosting struct {
	Gross           decimal.Decimal
	Commission      decimal.Decimal
	Chargeback      decimal.Decimal
	Net             decimal.Decimal
	Currency        string
	RefType         string
	RefID           string
	SellerCompanyID string
	Description     string
}

// PostRelease persists the balanced double-entry group for one earning
// release inside the caller's transaction: a platform leg moving gross
// out of escrow liability into commission revenue plus the intercompany
// clearing account, and a seller leg moving the clearing amount into
// the seller payable account. The seller's available balance is
// incremented by the net amount exactly once.
//
// An existing group for idempotencyKey short-circuits without posting,
// independently of any caller-side idempotency checks.
func (s *Service) PostRelease(tx *gorm.DB, idempotencyKey string, p ReleasePosting) error {
	logger := log.With().
		Str("idempotency_key", idempotencyKey).
		Str("seller_company_id", p.SellerCompanyID).
		Str("currency", p.Currency).
		Str("service", "ledger").
		Logger()

	platformAccount, err := s.db.GetOrCreateAccount(tx, s.platformCompanyID, p.Currency)
	if err != nil {
		return err
	}

	sellerAccount, err := s.db.GetAccount(tx, p.SellerCompanyID, p.Currency)
	if err != nil {
		return err
	}
	if sellerAccount == nil {
		// Seller accounts are provisioned by onboarding; absence is a
		// misconfiguration, never a transient condition.
		return &errs.AppError{
			Op:      "ledger.PostRelease",
			Message: fmt.Sprintf("no ledger account for seller %s in %s", p.SellerCompanyID, p.Currency),
		}
	}

	existing, err := s.db.GetGroupByKey(tx, idempotencyKey)
	if err != nil {
		return err
	}
	if existing != nil {
		logger.Info().
			Str("group_id", existing.GroupID).
			Msg("ledger group already posted for key, skipping")
		return nil
	}

	group := &Group{
		GroupID:        "LGR_" + uuid.New().String(),
		IdempotencyKey: idempotencyKey,
		CompanyID:      s.platformCompanyID,
		GroupType:      GroupTypeEarningRelease,
		Description:    p.Description,
	}
	if err := s.db.CreateGroup(tx, group); err != nil {
		return fmt.Errorf("failed to create ledger group: %w", err)
	}

	// The portion that must balance between the platform's and the
	// seller's books. clearing = net + chargeback = gross - commission,
	// which is what makes each leg balance independently.
	clearing := p.Net.Add(p.Chargeback)

	entries := []Entry{
		{
			CompanyID:   s.platformCompanyID,
			AccountID:   platformAccount.AccountID,
			GroupID:     group.GroupID,
			AccountType: AccountEscrowLiability,
			Direction:   Debit,
			Amount:      p.Gross,
			Currency:    p.Currency,
			RefType:     p.RefType,
			RefID:       p.RefID,
		},
		{
			CompanyID:   s.platformCompanyID,
			AccountID:   platformAccount.AccountID,
			GroupID:     group.GroupID,
			AccountType: AccountPlatformRevenueCommission,
			Direction:   Credit,
			Amount:      p.Commission,
			Currency:    p.Currency,
			RefType:     p.RefType,
			RefID:       p.RefID,
		},
		{
			CompanyID:   s.platformCompanyID,
			AccountID:   platformAccount.AccountID,
			GroupID:     group.GroupID,
			AccountType: AccountPlatformIntercoClearing,
			Direction:   Credit,
			Amount:      clearing,
			Currency:    p.Currency,
			RefType:     p.RefType,
			RefID:       p.RefID,
		},
		{
			CompanyID:   p.SellerCompanyID,
			AccountID:   sellerAccount.AccountID,
			GroupID:     group.GroupID,
			AccountType: AccountSellerIntercoClearing,
			Direction:   Debit,
			Amount:      clearing,
			Currency:    p.Currency,
			RefType:     p.RefType,
			RefID:       p.RefID,
		},
		{
			CompanyID:   p.SellerCompanyID,
			AccountID:   sellerAccount.AccountID,
			GroupID:     group.GroupID,
			AccountType: AccountSellerPayable,
			Direction:   Credit,
			Amount:      p.Net,
			Currency:    p.Currency,
			RefType:     p.RefType,
			RefID:       p.RefID,
		},
	}
	if err := s.db.CreateEntries(tx, entries); err != nil {
		return fmt.Errorf("failed to create ledger entries: %w", err)
	}

	if err := s.db.IncrementAvailableBalance(tx, sellerAccount.AccountID, p.Net); err != nil {
		return err
	}

	// NOTE: the platform's escrow-liability balance field is not
	// decremented here; the liability reduction is visible only through
	// the ESCROW_LIABILITY debit entries. Kept as-is for compatibility
	// with existing reports built on the entry stream.

	logger.Info().
		Str("group_id", group.GroupID).
		Str("gross", p.Gross.String()).
		Str("commission", p.Commission.String()).
		Str("clearing", clearing.String()).
		Str("net", p.Net.String()).
		Msg("posted earning release ledger group")

	return nil
}

// CheckGroupBalanced verifies that within a group the debit and credit
// sums are equal for every currency present.
func (s *Service) CheckGroupBalanced(groupID string) error {
	entries, err := s.db.GetGroupEntries(groupID)
	if err != nil {
		return err
	}

	debits := make(map[string]decimal.Decimal)
	credits := make(map[string]decimal.Decimal)
	for _, entry := range entries {
		switch entry.Direction {
		case Debit:
			debits[entry.Currency] = debits[entry.Currency].Add(entry.Amount)
		case Credit:
			credits[entry.Currency] = credits[entry.Currency].Add(entry.Amount)
		}
	}

	for currency, debit := range debits {
		if !debit.Equal(credits[currency]) {
			return fmt.Errorf("group %s unbalanced in %s: debits %s, credits %s",
				groupID, currency, debit.String(), credits[currency].String())
		}
	}
	for currency, credit := range credits {
		if _, ok := debits[currency]; !ok && !credit.IsZero() {
			return fmt.Errorf("group %s unbalanced in %s: debits 0, credits %s",
				groupID, currency, credit.String())
		}
	}
	return nil
}

// GetDB exposes the database wrapper for handlers and the simulation.
func (s *Service) GetDB() *Database {
	return s.db
}

// GinHandlers contains HTTP handlers for ledger endpoints
type GinHandlers struct {
	service *Service
}

func NewGinHandlers(service *Service) *GinHandlers {
	return &GinHandlers{
		service: service,
	}
}

// GetAccountHandler handles GET requests for a company's account
// balance in a currency. Requires internal authentication.
// URL parameter: company_id; query parameter: currency
func (h *GinHandlers) GetAccountHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := c.Param("company_id")
		currency := c.DefaultQuery("currency", "TRY")

		account, err := h.service.db.GetAccount(h.service.db.db, companyID, currency)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if account == nil {
			response.NotFound(c, "Ledger account not found")
			return
		}

		response.Success(c, types.AccountResponse{
			CompanyID:        account.CompanyID,
			Currency:         account.Currency,
			AvailableBalance: account.AvailableBalance,
			PendingBalance:   account.PendingBalance,
			UpdatedAt:        account.UpdatedAt,
		})
	}
}

// ListGroupsHandler handles GET requests listing a company's ledger
// groups, newest first. Requires internal authentication.
// URL parameter: company_id
func (h *GinHandlers) ListGroupsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		companyID := c.Param("company_id")

		groups, err := h.service.db.ListGroupsByCompany(companyID)
		response.Handle(c, groups, err)
	}
}

// GetSellerAccountHandler handles GET requests for the authenticated
// seller's own account balance. Requires a valid JWT token; sellers can
// only read their own account.
// URL parameter: company_id; query parameter: currency
func (h *GinHandlers) GetSellerAccountHandler() gin.HandlerFunc {
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
		if c.Param("company_id") != companyID {
			response.NotFound(c, "Ledger account not found")
			return
		}

		currency := c.DefaultQuery("currency", "TRY")
		account, err := h.service.db.GetAccount(h.service.db.db, companyID, currency)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if account == nil {
			response.NotFound(c, "Ledger account not found")
			return
		}

		response.Success(c, types.AccountResponse{
			CompanyID:        account.CompanyID,
			Currency:         account.Currency,
			AvailableBalance: account.AvailableBalance,
			PendingBalance:   account.PendingBalance,
			UpdatedAt:        account.UpdatedAt,
		})
	}
}

// GetGroupEntriesHandler handles GET requests listing the entries of a
// ledger group. Requires internal authentication.
// URL parameter: group_id
func (h *GinHandlers) GetGroupEntriesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		groupID := c.Param("group_id")

		entries, err := h.service.db.GetGroupEntries(groupID)
		if err != nil {
			response.Handle(c, nil, err)
			return
		}
		if len(entries) == 0 {
			response.NotFound(c, "Ledger group not found")
			return
		}

		response.Success(c, entries)
	}
}
