package models

import "loan-sync/store"

// User is the client (camelCase) shape of a borrower account.
type User struct {
	ID                 string  `json:"id"`
	Phone              string  `json:"phone"`
	FullName           string  `json:"fullName"`
	IDNumber           string  `json:"idNumber"`
	Balance            float64 `json:"balance"`
	TotalLimit         float64 `json:"totalLimit"`
	Rank               string  `json:"rank"`
	RankProgress       float64 `json:"rankProgress"`
	IsLoggedIn         bool    `json:"isLoggedIn"`
	IsAdmin            bool    `json:"isAdmin"`
	PendingUpgradeRank *string `json:"pendingUpgradeRank"`
	RankUpgradeBill    *string `json:"rankUpgradeBill"`
	Address            *string `json:"address"`
	JoinDate           *string `json:"joinDate"`
	IDFront            *string `json:"idFront"`
	IDBack             *string `json:"idBack"`
	RefZalo            *string `json:"refZalo"`
	Relationship       *string `json:"relationship"`
	LastLoanSeq        int64   `json:"lastLoanSeq"`
	BankName           *string `json:"bankName"`
	BankAccountNumber  *string `json:"bankAccountNumber"`
	BankAccountHolder  *string `json:"bankAccountHolder"`
	UpdatedAt          Millis  `json:"updatedAt"`
}

// UserRow is the storage (snake_case) shape of the users table.
type UserRow struct {
	ID                 string  `json:"id"`
	Phone              string  `json:"phone"`
	FullName           string  `json:"full_name"`
	IDNumber           string  `json:"id_number"`
	Balance            float64 `json:"balance"`
	TotalLimit         float64 `json:"total_limit"`
	Rank               string  `json:"rank"`
	RankProgress       float64 `json:"rank_progress"`
	IsLoggedIn         bool    `json:"is_logged_in"`
	IsAdmin            bool    `json:"is_admin"`
	PendingUpgradeRank *string `json:"pending_upgrade_rank"`
	RankUpgradeBill    *string `json:"rank_upgrade_bill"`
	Address            *string `json:"address"`
	JoinDate           *string `json:"join_date"`
	IDFront            *string `json:"id_front"`
	IDBack             *string `json:"id_back"`
	RefZalo            *string `json:"ref_zalo"`
	Relationship       *string `json:"relationship"`
	LastLoanSeq        int64   `json:"last_loan_seq"`
	BankName           *string `json:"bank_name"`
	BankAccountNumber  *string `json:"bank_account_number"`
	BankAccountHolder  *string `json:"bank_account_holder"`
	UpdatedAt          Millis  `json:"updated_at"`
}

// UserFromRow maps a stored user to the client shape.
func UserFromRow(r UserRow) User {
	return User{
		ID:                 r.ID,
		Phone:              r.Phone,
		FullName:           r.FullName,
		IDNumber:           r.IDNumber,
		Balance:            r.Balance,
		TotalLimit:         r.TotalLimit,
		Rank:               r.Rank,
		RankProgress:       r.RankProgress,
		IsLoggedIn:         r.IsLoggedIn,
		IsAdmin:            r.IsAdmin,
		PendingUpgradeRank: r.PendingUpgradeRank,
		RankUpgradeBill:    r.RankUpgradeBill,
		Address:            r.Address,
		JoinDate:           r.JoinDate,
		IDFront:            r.IDFront,
		IDBack:             r.IDBack,
		RefZalo:            r.RefZalo,
		Relationship:       r.Relationship,
		LastLoanSeq:        r.LastLoanSeq,
		BankName:           r.BankName,
		BankAccountNumber:  r.BankAccountNumber,
		BankAccountHolder:  r.BankAccountHolder,
		UpdatedAt:          r.UpdatedAt,
	}
}

// UserToRow maps a client user to the storage shape.
func UserToRow(u User) UserRow {
	return UserRow{
		ID:                 u.ID,
		Phone:              u.Phone,
		FullName:           u.FullName,
		IDNumber:           u.IDNumber,
		Balance:            u.Balance,
		TotalLimit:         u.TotalLimit,
		Rank:               u.Rank,
		RankProgress:       u.RankProgress,
		IsLoggedIn:         u.IsLoggedIn,
		IsAdmin:            u.IsAdmin,
		PendingUpgradeRank: u.PendingUpgradeRank,
		RankUpgradeBill:    u.RankUpgradeBill,
		Address:            u.Address,
		JoinDate:           u.JoinDate,
		IDFront:            u.IDFront,
		IDBack:             u.IDBack,
		RefZalo:            u.RefZalo,
		Relationship:       u.Relationship,
		LastLoanSeq:        u.LastLoanSeq,
		BankName:           u.BankName,
		BankAccountNumber:  u.BankAccountNumber,
		BankAccountHolder:  u.BankAccountHolder,
		UpdatedAt:          u.UpdatedAt,
	}
}

// DecodeUserRow reads a users record from the store.
func DecodeUserRow(rec store.Record) (UserRow, error) {
	var row UserRow
	err := decodeRecord(rec, &row)
	return row, err
}

// Record returns the row as a store record.
func (r UserRow) Record() store.Record {
	return encodeRecord(r)
}
