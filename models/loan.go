package models

import "loan-sync/store"

// Loan is the client shape of a loan request. Status values belong to the
// client and are stored as given.
type Loan struct {
	ID              string  `json:"id"`
	UserID          string  `json:"userId"`
	UserName        string  `json:"userName"`
	Amount          float64 `json:"amount"`
	Date            string  `json:"date"`
	CreatedAt       *string `json:"createdAt"`
	Status          string  `json:"status"`
	Fine            float64 `json:"fine"`
	BillImage       *string `json:"billImage"`
	Signature       *string `json:"signature"`
	RejectionReason *string `json:"rejectionReason"`
	UpdatedAt       Millis  `json:"updatedAt"`
}

// LoanRow is the storage shape of the loans table.
type LoanRow struct {
	ID              string  `json:"id"`
	UserID          string  `json:"user_id"`
	UserName        string  `json:"user_name"`
	Amount          float64 `json:"amount"`
	Date            string  `json:"date"`
	CreatedAt       *string `json:"created_at"`
	Status          string  `json:"status"`
	Fine            float64 `json:"fine"`
	BillImage       *string `json:"bill_image"`
	Signature       *string `json:"signature"`
	RejectionReason *string `json:"rejection_reason"`
	UpdatedAt       Millis  `json:"updated_at"`
}

func LoanFromRow(r LoanRow) Loan {
	return Loan{
		ID:              r.ID,
		UserID:          r.UserID,
		UserName:        r.UserName,
		Amount:          r.Amount,
		Date:            r.Date,
		CreatedAt:       r.CreatedAt,
		Status:          r.Status,
		Fine:            r.Fine,
		BillImage:       r.BillImage,
		Signature:       r.Signature,
		RejectionReason: r.RejectionReason,
		UpdatedAt:       r.UpdatedAt,
	}
}

func LoanToRow(l Loan) LoanRow {
	return LoanRow{
		ID:              l.ID,
		UserID:          l.UserID,
		UserName:        l.UserName,
		Amount:          l.Amount,
		Date:            l.Date,
		CreatedAt:       l.CreatedAt,
		Status:          l.Status,
		Fine:            l.Fine,
		BillImage:       l.BillImage,
		Signature:       l.Signature,
		RejectionReason: l.RejectionReason,
		UpdatedAt:       l.UpdatedAt,
	}
}

func DecodeLoanRow(rec store.Record) (LoanRow, error) {
	var row LoanRow
	err := decodeRecord(rec, &row)
	return row, err
}

func (r LoanRow) Record() store.Record {
	return encodeRecord(r)
}
