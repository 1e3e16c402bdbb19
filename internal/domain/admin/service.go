package admin

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"

	"github.com/julo/lendcore/internal/domain/account"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	lenderdomain "github.com/julo/lendcore/internal/domain/lender"
	"github.com/julo/lendcore/internal/domain/loan"
)

var (
	ErrInvalidLenderInput  = errors.New("invalid_lender_input")
	ErrInvalidLenderStatus = errors.New("invalid_lender_status")
	ErrLenderCodeTaken     = errors.New("lender_code_taken")
)

var lenderCodePattern = regexp.MustCompile(`^[a-z0-9_]{2,32}$`)

type LenderRepository interface {
	Create(ctx context.Context, in lenderdomain.CreateInput) (*lenderdomain.Entity, error)
	GetByID(ctx context.Context, id string) (*lenderdomain.Entity, error)
	GetByCode(ctx context.Context, code string) (*lenderdomain.Entity, error)
	UpdateStatus(ctx context.Context, lenderID, status string) error
}

type FeatureSettings interface {
	List(ctx context.Context) ([]featuresetting.Setting, error)
	Update(ctx context.Context, name string, in featuresetting.UpdateInput) (*featuresetting.Setting, *featuresetting.Setting, error)
}

type AccountLimits interface {
	SetLimit(ctx context.Context, accountID string, limit int64) (*account.Limit, error)
}

type Repayments interface {
	RecordRepayment(ctx context.Context, in loan.RepaymentInput) (*loan.RepaymentResult, error)
}

type AuditRepository interface {
	Log(ctx context.Context, in AuditLogInput) error
}

type TxRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type AuditLogInput struct {
	AdminUserID string
	Action      string
	TargetType  string
	TargetID    string
	Payload     []byte
}

type Service struct {
	lenderRepo LenderRepository
	features   FeatureSettings
	limits     AccountLimits
	repayments Repayments
	auditRepo  AuditRepository
	tx         TxRunner
}

type Dependencies struct {
	Lenders    LenderRepository
	Features   FeatureSettings
	Limits     AccountLimits
	Repayments Repayments
	Audit      AuditRepository
	Tx         TxRunner
}

func NewService(deps Dependencies) *Service {
	return &Service{
		lenderRepo: deps.Lenders,
		features:   deps.Features,
		limits:     deps.Limits,
		repayments: deps.Repayments,
		auditRepo:  deps.Audit,
		tx:         deps.Tx,
	}
}

func (s *Service) OnboardLender(ctx context.Context, adminUserID string, in lenderdomain.CreateInput) (*lenderdomain.Entity, error) {
	in.Code = strings.ToLower(strings.TrimSpace(in.Code))
	if !lenderCodePattern.MatchString(in.Code) || strings.TrimSpace(in.Name) == "" || in.DisbursementBalance < 0 {
		return nil, ErrInvalidLenderInput
	}
	if strings.TrimSpace(in.Status) == "" {
		in.Status = lenderdomain.StatusInactive
	}
	if !validLenderStatus(in.Status) {
		return nil, ErrInvalidLenderStatus
	}
	if in.Priority == 0 {
		in.Priority = 100
	}

	var created *lenderdomain.Entity
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.lenderRepo.GetByCode(ctx, in.Code); err == nil {
			return ErrLenderCodeTaken
		} else if !errors.Is(err, lenderdomain.ErrLenderNotFound) {
			return err
		}
		e, err := s.lenderRepo.Create(ctx, in)
		if err != nil {
			return err
		}
		created = e
		return s.audit(ctx, adminUserID, "lender_onboarded", "lender", e.ID, map[string]any{
			"code":                 e.Code,
			"name":                 e.Name,
			"status":               e.Status,
			"is_channeling":        e.IsChanneling,
			"disbursement_balance": e.DisbursementBalance,
			"product_codes":        e.ProductCodes,
		})
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *Service) UpdateLenderStatus(ctx context.Context, adminUserID, lenderID, status string) error {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validLenderStatus(status) {
		return ErrInvalidLenderStatus
	}
	if strings.TrimSpace(lenderID) == "" {
		return lenderdomain.ErrLenderNotFound
	}
	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.lenderRepo.GetByID(ctx, lenderID)
		if err != nil {
			return err
		}
		if err := s.lenderRepo.UpdateStatus(ctx, lenderID, status); err != nil {
			return err
		}
		return s.audit(ctx, adminUserID, "lender_status_updated", "lender", lenderID, map[string]any{
			"before": current.Status,
			"after":  status,
		})
	})
}

func (s *Service) ListFeatureSettings(ctx context.Context) ([]featuresetting.Setting, error) {
	return s.features.List(ctx)
}

func (s *Service) UpdateFeatureSetting(ctx context.Context, adminUserID, name string, in featuresetting.UpdateInput) (*featuresetting.Setting, error) {
	var out *featuresetting.Setting
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		before, after, err := s.features.Update(ctx, name, in)
		if err != nil {
			return err
		}
		out = after
		return s.audit(ctx, adminUserID, "feature_setting_updated", "feature_setting", name, map[string]any{
			"before": before,
			"after":  after,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) SetAccountLimit(ctx context.Context, adminUserID, accountID string, limit int64) (*account.Limit, error) {
	var out *account.Limit
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		l, err := s.limits.SetLimit(ctx, accountID, limit)
		if err != nil {
			return err
		}
		out = l
		return s.audit(ctx, adminUserID, "account_limit_set", "account", accountID, map[string]any{
			"set_limit":       l.SetLimit,
			"available_limit": l.AvailableLimit,
			"used_limit":      l.UsedLimit,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) RecordRepayment(ctx context.Context, adminUserID string, in loan.RepaymentInput) (*loan.RepaymentResult, error) {
	var out *loan.RepaymentResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		res, err := s.repayments.RecordRepayment(ctx, in)
		if err != nil {
			return err
		}
		out = res
		return s.audit(ctx, adminUserID, "repayment_recorded", "loan", in.LoanID, map[string]any{
			"amount":         in.Amount,
			"channel":        in.Channel,
			"reference":      in.Reference,
			"principal_paid": res.PrincipalPaid,
			"interest_paid":  res.InterestPaid,
			"late_fee_paid":  res.LateFeePaid,
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) audit(ctx context.Context, adminUserID, action, targetType, targetID string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.auditRepo.Log(ctx, AuditLogInput{
		AdminUserID: adminUserID,
		Action:      action,
		TargetType:  targetType,
		TargetID:    targetID,
		Payload:     raw,
	})
}

func validLenderStatus(status string) bool {
	return status == lenderdomain.StatusActive || status == lenderdomain.StatusInactive
}
