package pdf

import (
	"bytes"
	"context"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

type InvoiceData struct {
	CoopName    string
	CoopAddress string
	CoopEmail   string

	ReferenceNumber string
	BillingDate     string
	DueDate         string
	CycleMonth      string
	Status          string

	ClientName    string
	AccountNumber string
	ClientAddress string
	PlanName      string

	AmountDue string
}

type PDFProvider struct{}

func New() Provider {
	return &PDFProvider{}
}

func (p *PDFProvider) GenerateInvoice(ctx context.Context, invoice InvoiceData) (io.Reader, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(10,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Reference: "+invoice.ReferenceNumber, props.Text{Top: 0}),
			text.New("Billing date: "+invoice.BillingDate, props.Text{Top: 4}),
			text.New("Due date: "+invoice.DueDate, props.Text{Top: 8}),
			text.New("Cycle: "+invoice.CycleMonth, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("Status: "+invoice.Status, props.Text{Top: 0, Align: align.Right}),
		),
	)

	m.AddRow(40,
		col.New(6).Add(
			text.New(invoice.CoopName, props.Text{Style: fontstyle.Bold}),
			text.New(invoice.CoopAddress, props.Text{Top: 5}),
			text.New(invoice.CoopEmail, props.Text{Top: 20}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.ClientName, props.Text{Top: 5}),
			text.New("Account "+invoice.AccountNumber, props.Text{Top: 9}),
			text.New(invoice.ClientAddress, props.Text{Top: 13}),
		),
	)

	m.AddRow(10,
		text.NewCol(8, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(4, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)
	m.AddRow(8,
		text.NewCol(8, "Internet service "+invoice.PlanName+" ("+invoice.CycleMonth+")", props.Text{Size: 9}),
		text.NewCol(4, invoice.AmountDue, props.Text{Size: 9, Align: align.Right}),
	)

	m.AddRow(15,
		text.NewCol(12, "Amount due: "+invoice.AmountDue, props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
			Align: align.Right,
		}),
	)

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}
