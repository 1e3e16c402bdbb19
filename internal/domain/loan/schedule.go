package loan

import (
	"time"

	"github.com/shopspring/decimal"
)

const maxCycleDay = 28

var bpsDivisor = decimal.NewFromInt(10000)

// Terms are the amounts derived from a requested loan before it is persisted.
type Terms struct {
	RequestedAmount    int64
	ProvisionFee       int64
	LoanAmount         int64
	DisbursementAmount int64
	MonthlyInterest    int64
	InstallmentAmount  int64
}

// ApplyBPS returns amount * bps / 10000 rounded half-up to whole rupiah.
func ApplyBPS(amount int64, bps int32) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt32(bps)).
		Div(bpsDivisor).
		Round(0).
		IntPart()
}

// ComputeTerms adds the provision fee on top of the requested amount and
// charges flat monthly interest on the resulting loan amount.
func ComputeTerms(requested int64, durationMonths, monthlyRateBPS, provisionRateBPS int32) Terms {
	fee := ApplyBPS(requested, provisionRateBPS)
	loanAmount := requested + fee
	interest := ApplyBPS(loanAmount, monthlyRateBPS)
	principal := loanAmount / int64(durationMonths)
	return Terms{
		RequestedAmount:    requested,
		ProvisionFee:       fee,
		LoanAmount:         loanAmount,
		DisbursementAmount: requested,
		MonthlyInterest:    interest,
		InstallmentAmount:  principal + interest,
	}
}

// BuildSchedule splits the loan amount evenly across installments with the
// remainder on the last one. Due dates fall on the start day, clamped to 28.
func BuildSchedule(t Terms, durationMonths int32, start time.Time) []Payment {
	n := int64(durationMonths)
	principal := t.LoanAmount / n
	cycleDay := min(start.Day(), maxCycleDay)

	out := make([]Payment, 0, durationMonths)
	for i := int32(1); i <= durationMonths; i++ {
		p := principal
		if i == durationMonths {
			p = t.LoanAmount - principal*(n-1)
		}
		due := time.Date(start.Year(), start.Month()+time.Month(i), cycleDay, 0, 0, 0, 0, start.Location())
		out = append(out, Payment{
			PaymentNumber:        i,
			DueDate:              due,
			DueAmount:            p + t.MonthlyInterest,
			InstallmentPrincipal: p,
			InstallmentInterest:  t.MonthlyInterest,
			Status:               PaymentNotDue,
		})
	}
	return out
}
