package promo

import "github.com/shopspring/decimal"

// Benefit computes the rupiah value of a promo code for the checked loan.
func Benefit(c Code, in CheckInput) int64 {
	var amount int64
	switch c.BenefitType {
	case BenefitCashbackFixed:
		amount = c.BenefitValue
	case BenefitCashbackPercent:
		amount = percentOf(in.LoanAmount, c.BenefitPercentBPS)
	case BenefitInterestDiscountPercent:
		totalInterest := in.MonthlyInterest * int64(max(in.DurationMonths, 1))
		amount = percentOf(totalInterest, c.BenefitPercentBPS)
	case BenefitInstallmentDiscountFixed:
		amount = min(c.BenefitValue, in.InstallmentAmount)
	}
	if c.BenefitMaxAmount > 0 {
		amount = min(amount, c.BenefitMaxAmount)
	}
	return max(amount, 0)
}

func percentOf(amount int64, bps int32) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt32(bps)).
		Div(decimal.NewFromInt(10000)).
		Round(0).
		IntPart()
}
