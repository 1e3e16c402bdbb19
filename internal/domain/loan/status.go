package loan

const (
	StatusDraft                = 209
	StatusInactive             = 210
	StatusLenderApproval       = 211
	StatusFundDisbursalOngoing = 212
	StatusLenderReject         = 215
	StatusCancelledByCustomer  = 216
	StatusAgreementExpired     = 217
	StatusFundDisbursalFailed  = 218
	StatusCurrent              = 220
	StatusLate                 = 230
	StatusPaidOff              = 250
)

const (
	PaymentNotDue     = 310
	PaymentOverdue    = 320
	PaymentPaidOnTime = 330
	PaymentPaidLate   = 332
)

var transitions = map[int][]int{
	StatusDraft:                {StatusInactive, StatusCancelledByCustomer},
	StatusInactive:             {StatusLenderApproval, StatusCancelledByCustomer, StatusAgreementExpired},
	StatusLenderApproval:       {StatusFundDisbursalOngoing, StatusLenderReject},
	StatusFundDisbursalOngoing: {StatusCurrent, StatusFundDisbursalFailed},
	StatusFundDisbursalFailed:  {StatusFundDisbursalOngoing, StatusCancelledByCustomer},
	StatusCurrent:              {StatusLate, StatusPaidOff},
	StatusLate:                 {StatusCurrent, StatusPaidOff},
}

func CanTransition(from, to int) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ReleasesLimit reports whether reaching status returns the reserved account
// limit and lender balance.
func ReleasesLimit(status int) bool {
	switch status {
	case StatusLenderReject, StatusCancelledByCustomer, StatusAgreementExpired:
		return true
	}
	return false
}

func IsTerminal(status int) bool {
	_, ok := transitions[status]
	return !ok
}

func IsRepayable(status int) bool {
	return status == StatusCurrent || status == StatusLate
}

func IsPaidPaymentStatus(status int) bool {
	return status == PaymentPaidOnTime || status == PaymentPaidLate
}

var statusNames = map[int]string{
	StatusDraft:                "draft",
	StatusInactive:             "inactive",
	StatusLenderApproval:       "lender_approval",
	StatusFundDisbursalOngoing: "fund_disbursal_ongoing",
	StatusLenderReject:         "lender_reject",
	StatusCancelledByCustomer:  "cancelled_by_customer",
	StatusAgreementExpired:     "sphp_expired",
	StatusFundDisbursalFailed:  "fund_disbursal_failed",
	StatusCurrent:              "current",
	StatusLate:                 "late",
	StatusPaidOff:              "paid_off",
}

func StatusName(status int) string {
	if name, ok := statusNames[status]; ok {
		return name
	}
	return "unknown"
}
