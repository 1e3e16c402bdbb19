package loan

import (
	"bytes"
	"text/template"
)

var agreementTemplate = template.Must(template.New("agreement").Parse(`SURAT KONFIRMASI DAN RINCIAN TRANSAKSI PINJAMAN
Nomor Pinjaman: {{.Loan.LoanXID}}
Metode Transaksi: {{.Loan.TransactionMethod}}
Jumlah Pinjaman: Rp {{.Loan.LoanAmount}}
Jumlah Pencairan: Rp {{.Loan.DisbursementAmount}}
Biaya Provisi: Rp {{.Loan.ProvisionFee}}
Bunga per Bulan (bps): {{.Loan.InterestRateMonthlyBPS}}
Tenor: {{.Loan.DurationMonths}} bulan
{{range .Payments}}Cicilan {{.PaymentNumber}}: Rp {{.DueAmount}} jatuh tempo {{.DueDate.Format "2006-01-02"}}
{{end}}`))

// RenderAgreement produces the loan agreement text the customer signs.
func RenderAgreement(loan Entity, payments []Payment) ([]byte, error) {
	var buf bytes.Buffer
	if err := agreementTemplate.Execute(&buf, struct {
		Loan     Entity
		Payments []Payment
	}{Loan: loan, Payments: payments}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
