package postgres

import (
	"github.com/julo/lendcore/internal/domain/account"
	admindomain "github.com/julo/lendcore/internal/domain/admin"
	"github.com/julo/lendcore/internal/domain/channeling"
	"github.com/julo/lendcore/internal/domain/digisign"
	"github.com/julo/lendcore/internal/domain/featuresetting"
	lenderdomain "github.com/julo/lendcore/internal/domain/lender"
	loandomain "github.com/julo/lendcore/internal/domain/loan"
	"github.com/julo/lendcore/internal/domain/partner"
	"github.com/julo/lendcore/internal/domain/promo"
	"github.com/julo/lendcore/internal/domain/qris"
	"github.com/julo/lendcore/internal/jobs"
	"github.com/julo/lendcore/internal/ws"
)

var (
	_ account.Repository           = (*AccountRepository)(nil)
	_ lenderdomain.Repository      = (*LenderRepository)(nil)
	_ admindomain.LenderRepository = (*LenderRepository)(nil)
	_ loandomain.Repository        = (*LoanRepository)(nil)
	_ loandomain.PaymentRepository = (*PaymentRepository)(nil)
	_ loandomain.OutboxRepository  = (*OutboxRepository)(nil)
	_ channeling.OutboxRepository  = (*OutboxRepository)(nil)
	_ jobs.OutboxRepository        = (*OutboxRepository)(nil)
	_ promo.Repository             = (*PromoRepository)(nil)
	_ qris.Repository              = (*QRISRepository)(nil)
	_ channeling.Repository        = (*ChannelingRepository)(nil)
	_ featuresetting.Repository    = (*FeatureSettingRepository)(nil)
	_ digisign.Repository          = (*DigisignRepository)(nil)
	_ partner.Repository           = (*PartnerRepository)(nil)
	_ admindomain.AuditRepository  = (*AdminAuditRepository)(nil)
	_ ws.RealtimeRepository        = (*WSRepository)(nil)
)
