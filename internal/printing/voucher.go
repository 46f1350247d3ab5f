package printing

import (
	"bytes"
	"context"
	"html/template"
	"time"
)

// VoucherLine is one charging line printed on a disbursement voucher
type VoucherLine struct {
	AccountCode string
	AccountName string
	ChargingTag string
	Amount      string
}

// Signatory is one entry of the voucher's approval trail
type Signatory struct {
	Name   string
	Status string
	Date   string
}

// VoucherDocument is everything printed on a disbursement voucher
type VoucherDocument struct {
	VoucherNo   string
	Date        time.Time
	Status      string
	Payee       string
	Particulars string
	PONo        string
	CheckNo     string
	CheckAmount string
	Lines       []VoucherLine
	Signatories []Signatory
}

var voucherTemplate = template.Must(template.New("voucher").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="UTF-8">
<title>Disbursement Voucher {{.VoucherNo}}</title>
<style>
body { font-family: Arial, sans-serif; font-size: 11pt; }
h1 { font-size: 16pt; text-align: center; margin-bottom: 4px; }
.meta td { padding: 2px 8px; }
table.lines { width: 100%; border-collapse: collapse; margin-top: 12px; }
table.lines th, table.lines td { border: 1px solid #333; padding: 4px 6px; }
td.amount, th.amount { text-align: right; }
.signatories { margin-top: 24px; }
</style>
</head>
<body>
<h1>DISBURSEMENT VOUCHER</h1>
<table class="meta">
<tr><td>Voucher No.</td><td><strong>{{.VoucherNo}}</strong></td><td>Date</td><td>{{.Date.Format "2006-01-02"}}</td></tr>
<tr><td>Payee</td><td colspan="3">{{.Payee}}</td></tr>
{{- if .PONo}}
<tr><td>P.O. No.</td><td colspan="3">{{.PONo}}</td></tr>
{{- end}}
<tr><td>Status</td><td>{{.Status}}</td><td>Check No.</td><td>{{.CheckNo}}</td></tr>
</table>
<p>{{.Particulars}}</p>
<table class="lines">
<thead><tr><th>Account</th><th>Charging</th><th class="amount">Amount</th></tr></thead>
<tbody>
{{- range .Lines}}
<tr><td>{{.AccountCode}} {{.AccountName}}</td><td>{{.ChargingTag}}</td><td class="amount">{{.Amount}}</td></tr>
{{- end}}
<tr><td colspan="2"><strong>Check amount</strong></td><td class="amount"><strong>{{.CheckAmount}}</strong></td></tr>
</tbody>
</table>
{{- if .Signatories}}
<table class="signatories">
{{- range .Signatories}}
<tr><td>{{.Name}}</td><td>{{.Status}}</td><td>{{.Date}}</td></tr>
{{- end}}
</table>
{{- end}}
</body>
</html>
`))

// VoucherHTML renders doc into a standalone HTML page
func VoucherHTML(doc VoucherDocument) (string, error) {
	var buf bytes.Buffer
	if err := voucherTemplate.Execute(&buf, doc); err != nil {
		return "", NewRenderError(ErrCodeTemplateFailed, "voucher template failed", err)
	}
	return buf.String(), nil
}

// RenderVoucher lays out doc and prints it with renderer on A4
func RenderVoucher(ctx context.Context, renderer PDFRenderer, doc VoucherDocument) ([]byte, error) {
	html, err := VoucherHTML(doc)
	if err != nil {
		return nil, err
	}
	result, err := renderer.Render(ctx, &RenderRequest{
		HTML:      html,
		Title:     "Disbursement Voucher " + doc.VoucherNo,
		PaperSize: PaperA4,
		Margins:   Margins{Top: 12, Right: 12, Bottom: 12, Left: 12},
	})
	if err != nil {
		return nil, err
	}
	return result.PDFData, nil
}
